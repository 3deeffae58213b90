/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package refs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRepository(t *testing.T) {
	tests := []struct {
		in      string
		want    Repository
		wantErr bool
	}{
		{in: "acme/widgets", want: Repository{Owner: "acme", Name: "widgets"}},
		{in: "octoplane/octoplane", want: Repository{Owner: "octoplane", Name: "octoplane"}},
		{in: "nospslash", wantErr: true},
		{in: "/widgets", wantErr: true},
		{in: "acme/", wantErr: true},
		{in: "", wantErr: true},
		{in: "a/b/c", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseRepository(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRepository(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRepository(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRepository(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got.String() != tc.in {
			t.Errorf("String() = %q, want %q", got.String(), tc.in)
		}
	}
}

func TestEffectiveRefOrdinaryRepo(t *testing.T) {
	r := mustResolver(t)

	repo := Repository{Owner: "acme", Name: "widgets"}
	if got := r.EffectiveRef(repo, ""); got != "main" {
		t.Fatalf("default ref = %q, want main", got)
	}
	for _, ref := range []string{"main", "feature-x", "release/1.2"} {
		if got := r.EffectiveRef(repo, ref); got != ref {
			t.Fatalf("EffectiveRef(%q) = %q, want unchanged", ref, got)
		}
	}
}

func TestEffectiveRefControllerRepo(t *testing.T) {
	r := mustResolver(t)
	controller := r.Controller()

	if got := r.EffectiveRef(controller, ""); got != "refactor" {
		t.Fatalf("controller default = %q, want refactor", got)
	}
	if got := r.EffectiveRef(controller, "main"); got != "refactor" {
		t.Fatalf("controller main = %q, want refactor", got)
	}
	if got := r.EffectiveRef(controller, "feature-x"); got != "feature-x" {
		t.Fatalf("controller explicit = %q, want feature-x", got)
	}
}

func TestNewResolverValidation(t *testing.T) {
	if _, err := NewResolver(Repository{}, "work"); err == nil {
		t.Fatal("expected error for empty controller")
	}
	if _, err := NewResolver(Repository{Owner: "a", Name: "b"}, ""); err == nil {
		t.Fatal("expected error for empty working branch")
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("controller: octoplane/octoplane\nworkingBranch: refactor\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	r, err := p.Resolver()
	if err != nil {
		t.Fatalf("Resolver: %v", err)
	}
	if got := r.EffectiveRef(Repository{Owner: "octoplane", Name: "octoplane"}, "main"); got != "refactor" {
		t.Fatalf("policy resolver = %q, want refactor", got)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func mustResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(Repository{Owner: "octoplane", Name: "octoplane"}, "refactor")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}
