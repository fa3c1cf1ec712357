package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sansure/trust-cli/internal/engine"
	"github.com/sansure/trust-cli/internal/ledger"
	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/provider"
	"github.com/sansure/trust-cli/internal/village"
)

// handleHealth reports readiness without touching any provider.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": s.providerName,
		"breaker":  s.engine.BreakerState(),
	})
}

// visionRequest mirrors provider.VisionRequest with a pointer checklist so
// an omitted checklist is detectable instead of decoding as all-false.
type visionRequest struct {
	FacilityID  string           `json:"facilityId"`
	Base64Image string           `json:"base64_image"`
	Checklist   *model.Checklist `json:"checklist"`
}

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	var req visionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FacilityID == "" {
		s.respondError(w, http.StatusBadRequest, "facilityId is required")
		return
	}
	if req.Checklist == nil {
		s.respondError(w, http.StatusBadRequest, "checklist is required")
		return
	}

	outcome, err := s.engine.ScoreSubmission(r.Context(), provider.VisionRequest{
		FacilityID:  req.FacilityID,
		Base64Image: req.Base64Image,
		Checklist:   *req.Checklist,
	})
	if err != nil && !engine.IsLedgerWrite(err) {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// A failed audit write still returns the outcome; Recorded carries
	// the durability gap.
	s.respondJSON(w, http.StatusOK, outcome)
}

type collusionRequest struct {
	VillageID   string             `json:"village_id,omitempty"`
	Submissions []model.Submission `json:"submissions"`
}

func (s *Server) handleCollusion(w http.ResponseWriter, r *http.Request) {
	var req collusionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Submission decoding enforces checklist presence, so the
		// message names the missing field.
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.engine.AdjudicateCycle(r.Context(), req.VillageID, req.Submissions)
	if err != nil && !engine.IsLedgerWrite(err) {
		// Adjudication owns cycle validation, so failures here are bad input.
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

type villageRequest struct {
	VillageID string `json:"village_id"`
}

func (s *Server) handleInvestorSignal(w http.ResponseWriter, r *http.Request) {
	var req villageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := s.engine.InvestorSignal(r.Context(), req.VillageID)
	if err != nil && !engine.IsLedgerWrite(err) {
		s.respondVillageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleHealthNarrative(w http.ResponseWriter, r *http.Request) {
	var req villageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := s.engine.Narrative(r.Context(), req.VillageID)
	if err != nil && !engine.IsLedgerWrite(err) {
		s.respondVillageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	var req villageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := s.engine.EstimateImpact(r.Context(), req.VillageID)
	if err != nil && !engine.IsLedgerWrite(err) {
		s.respondVillageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleListVillages(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetVillage(w http.ResponseWriter, r *http.Request) {
	v, err := s.registry.Get(chi.URLParam(r, "villageID"))
	if err != nil {
		s.respondVillageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleTrustSignal(w http.ResponseWriter, r *http.Request) {
	signal, err := s.engine.TrustSignal(chi.URLParam(r, "villageID"))
	if err != nil {
		s.respondVillageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, signal)
}

func (s *Server) handleODFDiscrepancies(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.registry.ODFDiscrepancies())
}

func (s *Server) handleLedgerQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Method:     q.Get("method"),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	records, err := s.ledger.Query(r.Context(), filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.VerifyChain(r.Context()); err != nil {
		s.respondJSON(w, http.StatusConflict, map[string]any{
			"verified": false,
			"error":    err.Error(),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"verified": true})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	lookback := 24
	if v := r.URL.Query().Get("lookback_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "lookback_hours must be a positive integer")
			return
		}
		lookback = n
	}

	snap, err := s.collector.Collect(r.Context(), lookback)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) respondVillageError(w http.ResponseWriter, err error) {
	if eris.Is(err, village.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}
