package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/registry"
	"github.com/rickgao/ivengine/internal/solver"
	"github.com/rickgao/ivengine/internal/version"
)

// Table write results.
const (
	writeApplied  = "applied"
	writeRejected = "rejected"
)

// handleSetDataPoint writes one table row. The change reaches the
// registry through the feed and writer.
func (s *Server) handleSetDataPoint(w http.ResponseWriter, r *http.Request) {
	var p model.DataPoint
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, err)
		return
	}

	change, err := s.c.Table.SetDataPoint(p.Bucket, p.Probability)
	if err != nil {
		s.c.Metrics.ObserveTableWrite(writeRejected, s.c.Table.Version())
		writeError(w, err)
		return
	}
	s.c.Metrics.ObserveTableWrite(writeApplied, change.Version)

	s.logger.Info("table data point set",
		"bucket", change.Bucket,
		"old", change.Old,
		"new", change.New,
		"version", change.Version,
	)
	writeJSON(w, http.StatusOK, change)
}

type convergenceRequest struct {
	AcceptableRangeBps uint64  `json:"acceptable_range_bps"`
	MaxIterations      *uint64 `json:"max_iterations,omitempty"`
}

// handleAcceptableRange stores new convergence settings and reloads them
// into the solver.
func (s *Server) handleAcceptableRange(w http.ResponseWriter, r *http.Request) {
	if s.c.Store == nil {
		writeError(w, fmt.Errorf("parameter registry %w", errUnavailable))
		return
	}

	var req convergenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := solver.ValidateAcceptableRange(req.AcceptableRangeBps); err != nil {
		writeError(w, err)
		return
	}
	if req.MaxIterations != nil {
		if err := solver.ValidateMaxIterations(*req.MaxIterations); err != nil {
			writeError(w, err)
			return
		}
	}

	ctx := r.Context()
	if err := s.c.Store.SetUint(ctx, registry.KeyAcceptableRangeBps, req.AcceptableRangeBps); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.c.Guesser.UpdateAcceptableRange(ctx); err != nil {
		writeError(w, err)
		return
	}
	if req.MaxIterations != nil {
		if err := s.c.Store.SetUint(ctx, registry.KeyMaxIterations, *req.MaxIterations); err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.c.Guesser.UpdateConvergence(ctx); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.c.Guesser.Config())
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.c.Table.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	health.Components["table"] = map[string]any{
		"version": s.c.Table.Version(),
		"points":  s.c.Table.Len(),
	}
	health.Components["solver"] = s.c.Guesser.Config()

	if s.c.Database != nil {
		if err := s.c.Database.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}
	}

	if s.c.Feed != nil {
		health.Components["feed"] = s.c.Feed.Stats()
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
