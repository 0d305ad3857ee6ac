// Package server implements the pathdag HTTP API.
//
// The API exposes the graph mutations and queries over JSON:
//
//	POST   /v1/edges                      add an edge
//	DELETE /v1/edges                      remove an edge
//	GET    /v1/entities/{id}/parents      immediate parents
//	GET    /v1/entities/{id}/children     immediate children
//	GET    /v1/entities/{id}/paths        root-to-entity paths
//	GET    /v1/entities/{id}/tree         subtree rooted at the entity
//	GET    /v1/graph                      edge-list export
//	GET    /v1/graph.svg                  rendered visualization
//	GET    /v1/healthz                    liveness probe
//	GET    /v1/version                    build information
//
// Errors carry machine-readable codes from pkg/errors in the response body.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/pathdag/pathdag/pkg/buildinfo"
	"github.com/pathdag/pathdag/pkg/errors"
	"github.com/pathdag/pathdag/pkg/graphio"
	"github.com/pathdag/pathdag/pkg/pathdag"
)

// Server handles the HTTP API over one store.
type Server struct {
	store     pathdag.Store
	mutator   *pathdag.Mutator
	assembler *pathdag.Assembler
	logger    *log.Logger
}

// New creates a Server over the given store. A nil logger falls back to the
// default charm logger.
func New(store pathdag.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store:     store,
		mutator:   pathdag.NewMutator(store),
		assembler: pathdag.NewAssembler(store),
		logger:    logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(recoverPanics(s.logger))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/edges", s.handleAddEdge)
		r.Delete("/edges", s.handleRemoveEdge)

		r.Route("/entities/{id}", func(r chi.Router) {
			r.Get("/parents", s.handleParents)
			r.Get("/children", s.handleChildren)
			r.Get("/paths", s.handlePaths)
			r.Get("/tree", s.handleTree)
		})

		r.Get("/graph", s.handleGraph)
		r.Get("/graph.svg", s.handleGraphSVG)
		r.Get("/healthz", s.handleHealthz)
		r.Get("/version", s.handleVersion)
	})
	return r
}

// =============================================================================
// Handlers
// =============================================================================

// edgeRequest is the body for POST and DELETE /v1/edges.
type edgeRequest struct {
	Child  int64              `json:"child"`
	Parent int64              `json:"parent"`
	Attrs  pathdag.Attributes `json:"attrs,omitempty"`
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed request body"))
		return
	}

	link, err := s.mutator.AddEdge(r.Context(), req.Child, req.Parent, req.Attrs)
	if err != nil {
		s.writeError(w, r, errors.FromEngine(err))
		return
	}
	s.writeJSON(w, http.StatusCreated, link)
}

// removeEdgeResponse reports what an edge removal did.
type removeEdgeResponse struct {
	// Invalidated are the paths deleted with the edge, as they were.
	Invalidated []pathdag.PathInfo `json:"invalidated"`
	// Rebuilt counts the links written to restore orphaned descendants.
	Rebuilt int `json:"rebuilt"`
}

func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed request body"))
		return
	}

	original, rebuilt, err := s.mutator.RemoveEdge(r.Context(), req.Child, req.Parent)
	if err != nil {
		s.writeError(w, r, errors.FromEngine(err))
		return
	}
	s.writeJSON(w, http.StatusOK, removeEdgeResponse{Invalidated: original, Rebuilt: len(rebuilt)})
}

func (s *Server) handleParents(w http.ResponseWriter, r *http.Request) {
	s.handleNeighbors(w, r, s.assembler.Parents)
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	s.handleNeighbors(w, r, s.assembler.Children)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request,
	query func(ctx context.Context, entity int64) ([]int64, error)) {
	entity, ok := s.entityParam(w, r)
	if !ok {
		return
	}
	ids, err := query(r.Context(), entity)
	if err != nil {
		s.writeError(w, r, errors.FromEngine(err))
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityParam(w, r)
	if !ok {
		return
	}

	var (
		paths []pathdag.PathInfo
		err   error
	)
	if r.URL.Query().Get("through") == "true" {
		paths, err = s.assembler.PathsThrough(r.Context(), entity)
	} else {
		paths, err = s.assembler.EntityPaths(r.Context(), entity)
	}
	if err != nil {
		s.writeError(w, r, errors.FromEngine(err))
		return
	}
	if paths == nil {
		paths = []pathdag.PathInfo{}
	}
	s.writeJSON(w, http.StatusOK, paths)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityParam(w, r)
	if !ok {
		return
	}
	tree, err := s.assembler.Hierarchy(r.Context(), entity)
	if err != nil {
		s.writeError(w, r, errors.FromEngine(err))
		return
	}
	s.writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := graphio.Snapshot(r.Context(), s.store)
	if err != nil {
		s.writeError(w, r, errors.FromEngine(err))
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGraphSVG(w http.ResponseWriter, r *http.Request) {
	g, err := graphio.Snapshot(r.Context(), s.store)
	if err != nil {
		s.writeError(w, r, errors.FromEngine(err))
		return
	}
	detailed := r.URL.Query().Get("detailed") == "true"
	svg, err := graphio.RenderSVG(graphio.ToDOT(g, graphio.Options{Detailed: detailed}))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "rendering graph"))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(svg)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"built":   buildinfo.Date,
	})
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) entityParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidEntity, "invalid entity id %q", raw))
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

// errorResponse is the JSON shape of every error reply.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}

	var resp errorResponse
	resp.Error.Code = string(code)
	resp.Error.Message = errors.UserMessage(err)
	s.writeJSON(w, status, resp)
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidEntity, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeCycle:
		return http.StatusConflict
	case errors.ErrCodeEdgeNotFound, errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeStorageConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
