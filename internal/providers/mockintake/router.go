package mockintake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"olivia/internal/domain"
	"olivia/internal/ports"
)

// NewRouter serves backend over the /intake HTTP surface.
func NewRouter(backend *Backend) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := &handlers{backend: backend}
	r.Route("/intake", func(r chi.Router) {
		r.Post("/create-web-call", h.createWebCall)
		r.Post("/save-call-data", h.saveCallData)
		r.Post("/generate-summary", h.generateSummary)
		r.Get("/get-summary/{callID}", h.getSummary)
		r.Post("/analyze-goal-achievement", h.analyzeGoal)
		r.Get("/get-goal-analysis/{callID}", h.getGoalAnalysis)
	})

	return r
}

type handlers struct {
	backend *Backend
}

func (h *handlers) createWebCall(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	call, err := h.backend.CreateWebCall(r.Context(), body.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("callId", call.CallID).Str("userId", body.UserID).Msg("Mock web call created")
	writeJSON(w, http.StatusOK, call)
}

func (h *handlers) saveCallData(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CallID           string                     `json:"call_id"`
		TranscriptObject []domain.TranscriptMessage `json:"transcript_object"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := h.backend.SaveCallData(r.Context(), body.CallID, body.TranscriptObject); err != nil {
		if errors.Is(err, ErrUnknownCall) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) generateSummary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CallID     string                     `json:"call_id"`
		Transcript []domain.TranscriptMessage `json:"transcript"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.CallID == "" {
		writeError(w, http.StatusBadRequest, "call_id is required")
		return
	}

	summary, err := h.backend.GenerateSummary(r.Context(), body.CallID, body.Transcript)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (h *handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.backend.GetSummary(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusOK, map[string]any{"has_summary": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"has_summary": true, "summary": summary})
}

func (h *handlers) analyzeGoal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CallID      string                     `json:"call_id"`
		Transcript  []domain.TranscriptMessage `json:"transcript"`
		PatientID   string                     `json:"patient_id"`
		PatientName string                     `json:"patient_name"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.CallID == "" {
		writeError(w, http.StatusBadRequest, "call_id is required")
		return
	}

	analysis, err := h.backend.AnalyzeGoalAchievement(r.Context(), ports.GoalAnalysisRequest{
		CallID:      body.CallID,
		Transcript:  body.Transcript,
		PatientID:   body.PatientID,
		PatientName: body.PatientName,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *handlers) getGoalAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.backend.GetGoalAnalysis(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if analysis == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal_analysis": analysis})
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode mock intake response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
