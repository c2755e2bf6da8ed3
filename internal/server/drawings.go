package server

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drawmind/htp-server/internal/store"
	"github.com/drawmind/htp-server/internal/utils"
	"github.com/drawmind/htp-server/pkg/htp"
	"github.com/drawmind/htp-server/pkg/imageprep"
)

// maxUploadBytes caps one drawing upload; tablet exports stay well under
// this.
const maxUploadBytes = 20 << 20

// handleDrawingUpload accepts one drawing as multipart form data, stores
// the file and the drawing record, responds immediately and queues the
// asynchronous analysis.
func (s *Server) handleDrawingUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	sessionID := r.FormValue("session_id")
	typ := htp.DrawingType(r.FormValue("type"))
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if !typ.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid drawing type")
		return
	}

	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("failed to load session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	file, header, err := r.FormFile("drawing")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "drawing file is required")
		return
	}
	defer file.Close()
	if !utils.IsImageFile(header.Filename) {
		s.writeError(w, http.StatusBadRequest, "unsupported image format")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read drawing file")
		return
	}
	img, format, err := imageprep.Decode(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "corrupt or unsupported image")
		return
	}

	drawing := &htp.Drawing{
		ID:         uuid.NewString(),
		Type:       typ,
		Filename:   header.Filename,
		EraseCount: formInt(r, "erase_count"),
		ResetCount: formInt(r, "reset_count"),
		Duration:   formInt(r, "duration"),
		Status:     htp.StatusUploaded,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if raw := r.FormValue("pen_usage"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &drawing.PenUsage); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid pen_usage payload")
			return
		}
	}

	path, err := s.saveUpload(img, format, sessionID, drawing.ID)
	if err != nil {
		s.logger.Error("failed to save upload", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save drawing")
		return
	}
	drawing.Path = path

	if err := s.store.AddDrawing(r.Context(), sessionID, drawing); err != nil {
		s.logger.Error("failed to store drawing", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save drawing")
		return
	}

	// The client polls the status endpoint; analysis continues after this
	// response is written.
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"drawing_id": drawing.ID,
		"status":     string(drawing.Status),
	})
	s.pipeline.Enqueue(sessionID, drawing)
}

// uploadQuality is the lossy-encode quality for stored drawings.
const uploadQuality = 95

// saveUpload re-encodes the decoded upload in its original format, so a
// stored file is always a clean image the analyzers can re-open.
func (s *Server) saveUpload(img image.Image, format, sessionID, drawingID string) (string, error) {
	dir := filepath.Join(s.uploadDir, sessionID)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}

	ext := imageprep.ExtensionFor(format)
	encoded, err := imageprep.Encode(img, ext, uploadQuality)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, drawingID+ext)
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func formInt(r *http.Request, field string) int {
	n, err := strconv.Atoi(r.FormValue(field))
	if err != nil {
		return 0
	}
	return n
}

// handleDrawingList returns all drawings of a session.
func (s *Server) handleDrawingList(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("failed to load session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"drawings": sess.Drawings})
}

func (s *Server) loadDrawing(w http.ResponseWriter, r *http.Request) *htp.Drawing {
	d, err := s.store.GetDrawing(r.Context(), r.PathValue("sessionID"), r.PathValue("drawingID"))
	if err != nil {
		if errors.Is(err, store.ErrDrawingNotFound) {
			s.writeError(w, http.StatusNotFound, "drawing not found")
			return nil
		}
		s.logger.Error("failed to load drawing", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load drawing")
		return nil
	}
	return d
}

// handleDrawingStatus reports the analysis status of one drawing.
func (s *Server) handleDrawingStatus(w http.ResponseWriter, r *http.Request) {
	d := s.loadDrawing(w, r)
	if d == nil {
		return
	}
	resp := map[string]any{
		"drawing_id": d.ID,
		"status":     string(d.Status),
	}
	if d.Status == htp.StatusError && d.Result != nil && d.Result.Error != "" {
		resp["error"] = d.Result.Error
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDrawingResult returns the full analysis result of one drawing, or
// the current status when analysis has not finished.
func (s *Server) handleDrawingResult(w http.ResponseWriter, r *http.Request) {
	d := s.loadDrawing(w, r)
	if d == nil {
		return
	}
	switch d.Status {
	case htp.StatusDone:
		s.writeJSON(w, http.StatusOK, d.Result)
	case htp.StatusError:
		msg := "analysis failed"
		if d.Result != nil && d.Result.Error != "" {
			msg = d.Result.Error
		}
		s.writeError(w, http.StatusUnprocessableEntity, msg)
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"drawing_id": d.ID,
			"status":     string(d.Status),
		})
	}
}
