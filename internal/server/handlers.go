package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/internal/version"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// backendState is the JSON shape of one backend slot in the status response.
type backendState struct {
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Functions []backend.Func `json:"functions,omitempty"`
}

type statusResponse struct {
	Version  map[string]string       `json:"version"`
	Backends map[string]backendState `json:"backends"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Diskwright-Version", version.Short())
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	states := s.registry.States()

	resp := statusResponse{
		Version:  version.Map(),
		Backends: make(map[string]backendState, len(states)),
	}
	for kind, st := range states {
		bs := backendState{
			Status:    string(st.Status),
			Functions: st.Functions,
		}
		if st.Err != nil {
			bs.Error = st.Err.Error()
		}
		resp.Backends[string(kind)] = bs
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePVs(w http.ResponseWriter, r *http.Request) {
	pvs, err := registry.Entry[func(context.Context) ([]*lvm.PVInfo, error)](s.registry, backend.LVM, "pvs")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	infos, err := pvs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if infos == nil {
		infos = []*lvm.PVInfo{}
	}
	s.respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleVGs(w http.ResponseWriter, r *http.Request) {
	vgs, err := registry.Entry[func(context.Context) ([]*lvm.VGInfo, error)](s.registry, backend.LVM, "vgs")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	infos, err := vgs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if infos == nil {
		infos = []*lvm.VGInfo{}
	}
	s.respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleLVs(w http.ResponseWriter, r *http.Request) {
	vg := r.URL.Query().Get("vg")
	if vg == "" {
		BadRequest(w, "query parameter 'vg' is required", r.URL.Path)
		return
	}

	lvs, err := registry.Entry[func(context.Context, string) ([]*lvm.LVInfo, error)](s.registry, backend.LVM, "lvs")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	infos, err := lvs(r.Context(), vg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if infos == nil {
		infos = []*lvm.LVInfo{}
	}
	s.respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			BadRequest(w, "query parameter 'limit' must be a non-negative integer", r.URL.Path)
			return
		}
		limit = n
	}

	if s.journal == nil {
		s.respondJSON(w, http.StatusOK, []any{})
		return
	}

	entries, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, entries)
}

// writeError maps backend and registry errors onto problem responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))

	var cmdErr *cmdexec.CommandError

	switch {
	case errors.Is(err, registry.ErrNotLoaded):
		BackendNotLoaded(w, err.Error(), r.URL.Path)
	case errors.Is(err, registry.ErrCapabilityUnavailable):
		CapabilityUnavailable(w, err.Error(), r.URL.Path)
	case errors.As(err, &cmdErr):
		ToolFailed(w, err.Error(), r.URL.Path)
	default:
		InternalError(w, err.Error(), r.URL.Path)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}
