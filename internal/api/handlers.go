package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skysift/shiftwatch/internal/analysis"
	"github.com/skysift/shiftwatch/internal/config"
	"github.com/skysift/shiftwatch/internal/storage/sqlite"
	"github.com/skysift/shiftwatch/internal/transcript"
	"github.com/skysift/shiftwatch/pkg/logger"
)

// Handler handles API requests
type Handler struct {
	orchestrator *analysis.Orchestrator
	shifts       *sqlite.ShiftStorage
	reports      *sqlite.ReportStorage
	config       *config.Config
	logger       *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(orchestrator *analysis.Orchestrator, shifts *sqlite.ShiftStorage, reports *sqlite.ReportStorage, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		shifts:       shifts,
		reports:      reports,
		config:       cfg,
		logger:       log.Named("api-handler"),
	}
}

// ingestShiftRequest is the body for POST /shifts: shift metadata plus the
// diarized transcript the transcription step produced
type ingestShiftRequest struct {
	transcript.ShiftMetadata
	Transcript []transcript.Entry `json:"transcript"`
}

// IngestShift stores a shift's metadata and transcript
func (h *Handler) IngestShift(w http.ResponseWriter, r *http.Request) {
	var req ingestShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := req.ShiftMetadata.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i, e := range req.Transcript {
		if e.Speaker != transcript.SpeakerController && e.Speaker != transcript.SpeakerPilot {
			h.respondError(w, http.StatusBadRequest, "transcript entry "+strconv.Itoa(i)+" has unknown speaker: "+e.Speaker)
			return
		}
	}

	if err := h.shifts.StoreShift(r.Context(), req.ShiftMetadata, req.Transcript); err != nil {
		h.logger.Error("Failed to store shift", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to store shift")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]any{
		"shift_id": req.ShiftID,
		"segments": len(req.Transcript),
		"status":   "stored",
	})
}

// ListShifts returns stored shifts
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.pagination(r)

	shifts, err := h.shifts.ListShifts(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list shifts", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list shifts")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"count": len(shifts),
		"data":  shifts,
	})
}

// GetShift returns a shift's metadata
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	meta, err := h.shifts.FetchMetadata(r.Context(), shiftID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "shift not found")
			return
		}
		h.logger.Error("Failed to fetch shift", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to fetch shift")
		return
	}

	h.respondJSON(w, http.StatusOK, meta)
}

// GetTranscript returns a shift's stored transcript
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	entries, err := h.shifts.FetchTranscript(r.Context(), shiftID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "transcript not found")
			return
		}
		h.logger.Error("Failed to fetch transcript", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to fetch transcript")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"shift_id": shiftID,
		"segments": entries,
	})
}

// StartAnalysis schedules a background analysis run for the shift. When a
// run for the same shift is already in flight the request is rejected.
func (h *Handler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	if !h.orchestrator.StartAnalysis(shiftID) {
		h.respondJSON(w, http.StatusConflict, map[string]any{
			"shift_id": shiftID,
			"status":   "rejected",
		})
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]any{
		"shift_id": shiftID,
		"status":   "processing",
	})
}

// GetAnalysisStatus returns the state of the most recent run for a shift,
// including the failure reason when the run failed
func (h *Handler) GetAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	status, _ := h.orchestrator.Status(shiftID)
	h.respondJSON(w, http.StatusOK, status)
}

// GetReport returns the analysis report for a shift
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	report, err := h.reports.Get(r.Context(), shiftID)
	if err != nil {
		if errors.Is(err, analysis.ErrReportNotFound) {
			h.respondError(w, http.StatusNotFound, "report not found")
			return
		}
		h.logger.Error("Failed to fetch report", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to fetch report")
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

// ListReports returns reports with optional filters: high-risk fatigue,
// priority level, and requires-attention
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.pagination(r)
	filter := sqlite.ReportFilter{
		PriorityLevel:     r.URL.Query().Get("priority"),
		RequiresAttention: r.URL.Query().Get("requires_attention") == "true",
		Limit:             limit,
		Offset:            offset,
	}

	if r.URL.Query().Get("high_risk") == "true" {
		filter.MinFatigueScore = h.config.Analysis.HighRiskFatigueScore
	}
	if v := r.URL.Query().Get("min_fatigue_score"); v != "" {
		score, err := strconv.Atoi(v)
		if err != nil || score < 0 || score > 100 {
			h.respondError(w, http.StatusBadRequest, "min_fatigue_score must be an integer between 0 and 100")
			return
		}
		filter.MinFatigueScore = score
	}

	reports, err := h.reports.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list reports", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"count": len(reports),
		"data":  reports,
	})
}

// GetHealth returns service health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "shiftwatch",
	})
}

// pagination reads limit/offset query parameters with configured bounds
func (h *Handler) pagination(r *http.Request) (limit, offset int) {
	limit = h.config.Analysis.ReportQueryLimitDefault
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > h.config.Analysis.ReportQueryLimitMax {
		limit = h.config.Analysis.ReportQueryLimitMax
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// respondJSON writes a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

// respondError writes a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]any{"error": message})
}
