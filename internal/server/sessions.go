package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drawmind/htp-server/internal/store"
	"github.com/drawmind/htp-server/pkg/htp"
)

type sessionStartRequest struct {
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Birth    string `json:"birth"`
	Password string `json:"password"`
}

// handleSessionStart registers a new test session. The password is stored
// only as a bcrypt hash.
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	sess := &htp.Session{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Gender:       req.Gender,
		Birth:        req.Birth,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

type sessionFindRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionFindEntry struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"createdAt"`
	Completed bool      `json:"completed"`
}

// handleSessionFind returns the caller's past sessions: all sessions under
// the given name whose bcrypt hash matches the password.
func (s *Server) handleSessionFind(w http.ResponseWriter, r *http.Request) {
	var req sessionFindRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	candidates, err := s.store.FindSessionsByName(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		s.logger.Error("failed to find sessions", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to find sessions")
		return
	}

	matches := []sessionFindEntry{}
	for _, sess := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(sess.PasswordHash), []byte(req.Password)) != nil {
			continue
		}
		matches = append(matches, sessionFindEntry{
			SessionID: sess.ID,
			CreatedAt: sess.CreatedAt,
			Completed: sess.OverallSummary != "",
		})
	}
	if len(matches) == 0 {
		s.writeError(w, http.StatusNotFound, "no matching session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": matches})
}

// handleSessionGet returns one session with its drawings and, when
// available, the aggregate summary.
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("failed to load session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}
