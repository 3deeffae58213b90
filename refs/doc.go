/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package refs holds repository identity and the ref resolution policy.
//
// Every code path that turns a user-supplied ref into the ref actually used
// for a read or write must go through Resolver.EffectiveRef. The resolver
// exists so that an assistant operating on this server's own controller
// repository defaults onto a disposable working branch instead of the
// protected main branch, without changing defaults for any other repository.
package refs
