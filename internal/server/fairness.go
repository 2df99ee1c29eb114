package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/hdb-fairness/internal/fairness"
	"github.com/sells-group/hdb-fairness/internal/resilience"
)

type estimateRequest struct {
	Subject      map[string]any  `json:"subject"`
	Pool         json.RawMessage `json:"pool"`
	Coefficients map[string]any  `json:"coefficients"`
}

// handleEstimate serves POST /api/fairness.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req estimateRequest
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Subject == nil || len(req.Pool) == 0 || string(req.Pool) == "null" || req.Coefficients == nil {
		writeError(w, http.StatusBadRequest, "subject, pool and coefficients are required")
		return
	}

	subject := subjectFrom(func(key string) any { return req.Subject[key] })
	if subject.Town == "" || subject.FlatType == "" {
		writeError(w, http.StatusBadRequest, "subject.town and subject.flatType are required")
		return
	}

	var pool []fairness.RawRecord
	poolDec := json.NewDecoder(bytes.NewReader(req.Pool))
	poolDec.UseNumber()
	if err := poolDec.Decode(&pool); err != nil {
		writeError(w, http.StatusBadRequest, "pool must be an array of objects")
		return
	}
	if len(pool) == 0 {
		writeError(w, http.StatusBadRequest, "pool must not be empty")
		return
	}

	coeffs := fairness.Coefficients{
		BetaLease:    fairness.Number(req.Coefficients["betaLease"]),
		GammaLogArea: fairness.Number(req.Coefficients["gammaLogArea"]),
	}

	res := s.opts.Estimator.Estimate(subject, pool, coeffs)
	writeJSON(w, http.StatusOK, res)
}

// handleLookup serves GET /api/fairness, pulling the pool from the source.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if s.opts.Source == nil {
		writeError(w, http.StatusNotImplemented, "no transaction source configured")
		return
	}

	q := r.URL.Query()
	subject := subjectFrom(func(key string) any {
		if !q.Has(key) {
			return nil
		}
		return q.Get(key)
	})
	if subject.Town == "" || subject.FlatType == "" {
		writeError(w, http.StatusBadRequest, "town and flatType are required")
		return
	}

	coeffs := s.opts.Coefficients
	if q.Has("betaLease") {
		coeffs.BetaLease = fairness.Number(q.Get("betaLease"))
	}
	if q.Has("gammaLogArea") {
		coeffs.GammaLogArea = fairness.Number(q.Get("gammaLogArea"))
	}

	pool, err := s.opts.Source.Records(r.Context(), subject.Town, subject.FlatType)
	if err != nil {
		zap.L().Error("server: load transactions",
			zap.String("town", subject.Town),
			zap.String("flat_type", subject.FlatType),
			zap.Error(err),
		)
		if errors.Is(err, resilience.ErrOpen) {
			writeError(w, http.StatusServiceUnavailable, "transaction source temporarily unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "failed to load transactions")
		return
	}

	res := s.opts.Estimator.Estimate(subject, pool, coeffs)
	writeJSON(w, http.StatusOK, res)
}

// subjectFrom builds a Subject from loosely typed fields, coercing numeric
// strings.
func subjectFrom(get func(key string) any) fairness.Subject {
	text := func(key string) string {
		if s, ok := get(key).(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}
	return fairness.Subject{
		Town:                text("town"),
		FlatType:            text("flatType"),
		FloorAreaSqm:        fairness.Number(get("floorAreaSqm")),
		RemainingLeaseYears: fairness.LeaseYears(get("remainingLeaseYears")),
		AskingPrice:         fairness.Number(get("askingPrice")),
	}
}
