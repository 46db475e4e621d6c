package server

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/solver"
)

// DefaultProbabilityDecimals is used when a probability request omits decimals.
const DefaultProbabilityDecimals = 18

// errUnavailable marks optional components that are not configured.
var errUnavailable = errors.New("not available")

type probabilityResponse struct {
	Z           string `json:"z"`
	Decimals    uint8  `json:"decimals"`
	Probability string `json:"probability"`
}

func (s *Server) handleProbability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	z, ok := new(big.Int).SetString(q.Get("z"), 10)
	if !ok {
		writeError(w, fmt.Errorf("%w: z must be an integer at 15 decimals, got %q", errBadRequest, q.Get("z")))
		return
	}

	decimals := uint8(DefaultProbabilityDecimals)
	if raw := q.Get("decimals"); raw != "" {
		d, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			writeError(w, fmt.Errorf("%w: decimals: %v", errBadRequest, err))
			return
		}
		decimals = uint8(d)
	}

	p, err := s.c.Table.Probability(z, decimals)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, probabilityResponse{
		Z:           z.String(),
		Decimals:    decimals,
		Probability: p.String(),
	})
}

func optionKind(r *http.Request) (model.OptionKind, error) {
	kind, err := model.ParseOptionKind(mux.Vars(r)["kind"])
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return kind, nil
}

type priceResponse struct {
	Kind  model.OptionKind `json:"kind"`
	Price fixedpoint.Value `json:"price"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	kind, err := optionKind(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in model.PricingInputs
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	price, err := s.c.Pricer.Price(kind, in)
	if err != nil {
		writeError(w, err)
		return
	}
	s.c.Metrics.ObservePrice(string(kind))

	writeJSON(w, http.StatusOK, priceResponse{Kind: kind, Price: price})
}

func (s *Server) handleIV(w http.ResponseWriter, r *http.Request) {
	kind, err := optionKind(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var q solver.Query
	if err := decodeJSON(w, r, &q); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.c.Guesser.Solve(r.Context(), kind, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Queries []solver.Query `json:"queries"`
}

type batchItem struct {
	Result *model.IVResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type batchResponse struct {
	Kind      model.OptionKind `json:"kind"`
	Converged int              `json:"converged"`
	Results   []batchItem      `json:"results"`
}

// handleIVBatch solves each query independently; one failure does not
// affect the others.
func (s *Server) handleIVBatch(w http.ResponseWriter, r *http.Request) {
	kind, err := optionKind(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, fmt.Errorf("%w: no queries", errBadRequest))
		return
	}
	if len(req.Queries) > s.cfg.MaxBatchSize {
		writeError(w, fmt.Errorf("%w: %d queries exceeds limit of %d", errBadRequest, len(req.Queries), s.cfg.MaxBatchSize))
		return
	}

	results := make([]batchItem, len(req.Queries))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.cfg.BatchConcurrency)

	for i, q := range req.Queries {
		g.Go(func() error {
			res, err := s.c.Guesser.Solve(ctx, kind, q)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = &res
			return nil
		})
	}
	g.Wait()

	resp := batchResponse{Kind: kind, Results: results}
	for _, item := range results {
		if item.Result != nil {
			resp.Converged++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type closerRequest struct {
	Lower  model.Sample     `json:"lower"`
	Higher model.Sample     `json:"higher"`
	Target fixedpoint.Value `json:"target"`
}

type closerResponse struct {
	Guess fixedpoint.Value `json:"guess"`
}

func (s *Server) handleCloserIV(w http.ResponseWriter, r *http.Request) {
	var req closerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	guess, err := solver.CloserIV(model.NewBracket(req.Lower, req.Higher), req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closerResponse{Guess: guess})
}
