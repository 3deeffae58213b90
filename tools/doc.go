/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package tools is the serving surface: a registry of named operations
// the assistant can invoke, each with a declared side-effect class, a
// typed input schema, and a handler. Dispatch runs every call under the
// invocation trace, and errors travel in-band back to the model.
package tools
