/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package server exposes the tool registry over HTTP. Tool failures are
// reported in-band in the response body; transport-level status codes
// are reserved for malformed requests and unknown tools.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/octoplane/octoplane/tools"
)

// Server serves tool listings and invocations.
type Server struct {
	registry *tools.Registry
	server   *http.Server
}

// invokeRequest is the body of POST /tools/{name}.
type invokeRequest struct {
	ID   string         `json:"id,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// New builds a Server listening on addr.
func New(addr string, registry *tools.Registry) *Server {
	s := &Server{registry: registry}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /tools", s.listTools)
	mux.HandleFunc("POST /tools/{name}", s.invokeTool)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	defs := s.registry.Definitions()
	listed := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		listed = append(listed, map[string]any{
			"name":        def.Name,
			"description": def.Description,
			"side_effect": def.SideEffect.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": listed})
}

func (s *Server) invokeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.registry.Get(name); !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("unknown tool %q", name)})
		return
	}

	var req invokeRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "reading request body"})
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("decoding request: %v", err)})
			return
		}
	}

	resp := s.registry.Dispatch(r.Context(), tools.Call{ID: req.ID, Name: name, Args: req.Args})
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		clog.Errorf("encoding response: %v", err)
	}
}
