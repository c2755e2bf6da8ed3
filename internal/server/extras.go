package server

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/drawmind/htp-server/internal/store"
	"github.com/drawmind/htp-server/pkg/imageprep"
)

type colorAnalysisRequest struct {
	SessionID string `json:"session_id"`
	DrawingID string `json:"drawing_id"`
}

// handleColorAnalysis runs the step-2 color profile over a stored drawing
// and merges it into the drawing's result. The LLM refinement of the
// narrative is best-effort; the canned narrative stands when it fails.
func (s *Server) handleColorAnalysis(w http.ResponseWriter, r *http.Request) {
	var req colorAnalysisRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.DrawingID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id and drawing_id are required")
		return
	}

	d, err := s.store.GetDrawing(r.Context(), req.SessionID, req.DrawingID)
	if err != nil {
		if errors.Is(err, store.ErrDrawingNotFound) {
			s.writeError(w, http.StatusNotFound, "drawing not found")
			return
		}
		s.logger.Error("failed to load drawing", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load drawing")
		return
	}

	img, err := imageprep.LoadImage(d.Path)
	if err != nil {
		s.logger.Error("failed to load drawing image", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load drawing image")
		return
	}

	profile := s.colors.AnalyzeImage(img)
	if len(profile.Colors) > 0 && s.summarizer != nil {
		if refined, err := s.summarizer.RefineColorNarrative(r.Context(), profile.Narrative); err != nil {
			s.logger.Warn("color narrative refinement failed", zap.Error(err))
		} else if strings.TrimSpace(refined) != "" {
			profile.Narrative = strings.TrimSpace(refined)
		}
	}

	if err := s.store.SetColorProfile(r.Context(), req.SessionID, req.DrawingID, &profile); err != nil {
		s.logger.Error("failed to store color profile", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store color profile")
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

// handleStep2Question re-derives a follow-up question for a drawing that
// was routed to step 2, using the missing objects of its stored analysis.
func (s *Server) handleStep2Question(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	drawingID := r.URL.Query().Get("drawing_id")
	if sessionID == "" || drawingID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id and drawing_id are required")
		return
	}

	d, err := s.store.GetDrawing(r.Context(), sessionID, drawingID)
	if err != nil {
		if errors.Is(err, store.ErrDrawingNotFound) {
			s.writeError(w, http.StatusNotFound, "drawing not found")
			return
		}
		s.logger.Error("failed to load drawing", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load drawing")
		return
	}
	if d.Result == nil || d.Result.Analysis == nil {
		s.writeError(w, http.StatusConflict, "drawing has no analysis yet")
		return
	}

	analysis := d.Result.Analysis
	if analysis.ExtraQuestion != "" {
		s.writeJSON(w, http.StatusOK, map[string]string{"question": analysis.ExtraQuestion})
		return
	}

	var missingKeys []string
	for _, e := range analysis.Entries {
		if label, ok := strings.CutSuffix(e.Label, " (미표현)"); ok {
			missingKeys = append(missingKeys, label+"_missing")
		}
	}
	question := s.questions.PickForMissing(d.Type, missingKeys)
	if question == "" {
		s.writeError(w, http.StatusNotFound, "no follow-up question available")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"question": question})
}

type reportRequest struct {
	SessionID string `json:"session_id"`
}

// handleReportGenerate renders the PDF report for a completed session.
func (s *Server) handleReportGenerate(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := s.store.GetSession(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("failed to load session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if !sess.FullyAnalyzed() {
		s.writeError(w, http.StatusConflict, "session analysis is not complete")
		return
	}

	path, err := s.renderer.Render(r.Context(), sess)
	if err != nil {
		s.logger.Error("report generation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"report": path})
}
