package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/drawmind/htp-server/internal/pipeline"
	"github.com/drawmind/htp-server/internal/report"
	"github.com/drawmind/htp-server/internal/store"
	"github.com/drawmind/htp-server/pkg/colors"
	"github.com/drawmind/htp-server/pkg/htp"
	"github.com/drawmind/htp-server/pkg/rules"
	"github.com/drawmind/htp-server/pkg/summarizer"
)

type stubDetector struct {
	objects []htp.DetectedObject
}

func (d *stubDetector) Detect(_ context.Context, typ htp.DrawingType, _ string, _ []byte) (*htp.DetectionResult, error) {
	return &htp.DetectionResult{Type: string(typ), Objects: d.objects}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) SummarizeDrawing(context.Context, summarizer.DrawingInput, summarizer.UserContext) (string, error) {
	return "그림 요약", nil
}

func (stubSummarizer) SynthesizeOverall(context.Context, []summarizer.DrawingSummary, summarizer.UserContext) (*htp.AggregateSummary, error) {
	return &htp.AggregateSummary{OverallSummary: "종합 해석", DiagnosisSummary: "전문가의 상담이 필요하지 않습니다."}, nil
}

func (stubSummarizer) RefineColorNarrative(_ context.Context, draft string) (string, error) {
	return draft, nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	store    *store.Store
	pipeline *pipeline.Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "htp.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	det := &stubDetector{objects: []htp.DetectedObject{
		{Label: "집벽", X: 200, Y: 400, W: 700, H: 500},
	}}
	pl := pipeline.New(st, det, stubSummarizer{}, rules.NewMatcher(rules.DefaultTable()), zap.NewNop())

	srv := New(st, pl, colors.New(), rules.DefaultQuestions(), stubSummarizer{},
		report.New(report.Config{OutputDir: t.TempDir()}), t.TempDir(), zap.NewNop())
	return &testEnv{server: srv, handler: srv.Handler(), store: st, pipeline: pl}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) startSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions/start", map[string]string{
		"name":     "홍길동",
		"gender":   "male",
		"birth":    "2015-03-01",
		"password": "secret",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("session start returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["session_id"] == "" {
		t.Fatal("missing session_id")
	}
	return resp["session_id"]
}

func encodeTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 220, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func (e *testEnv) upload(t *testing.T, sessionID string, typ htp.DrawingType) string {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("drawing", "drawing.png")
	if err != nil {
		t.Fatalf("failed to build multipart: %v", err)
	}
	if _, err := part.Write(encodeTestPNG(t)); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	writer.WriteField("session_id", sessionID)
	writer.WriteField("type", string(typ))
	writer.WriteField("erase_count", "1")
	writer.WriteField("duration", "90")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/drawings/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	if resp["status"] != "uploaded" {
		t.Errorf("unexpected initial status %q", resp["status"])
	}
	return resp["drawing_id"]
}

func TestSessionStartAndFind(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/find", map[string]string{
		"name": "홍길동", "password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("find returned %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), id) {
		t.Errorf("find response missing session id: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/sessions/find", map[string]string{
		"name": "홍길동", "password": "wrong",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("wrong password should return 404, got %d", rec.Code)
	}
}

func TestSessionGetNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUploadAndAnalysisFlow(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.startSession(t)
	drawingID := env.upload(t, sessionID, htp.TypeHouse)

	env.pipeline.Wait()

	rec := env.do(t, http.MethodGet, "/api/drawings/"+sessionID+"/"+drawingID+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status returned %d: %s", rec.Code, rec.Body.String())
	}
	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status["status"] != "done" {
		t.Fatalf("expected done, got %v", status["status"])
	}

	rec = env.do(t, http.MethodGet, "/api/drawings/"+sessionID+"/"+drawingID+"/result", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result returned %d: %s", rec.Code, rec.Body.String())
	}
	var result htp.DrawingResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Analysis == nil || result.Detection == nil {
		t.Error("result is missing analysis or detection")
	}
	if result.Summary != "그림 요약" {
		t.Errorf("unexpected summary %q", result.Summary)
	}
}

func TestUploadRejectsInvalidType(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.startSession(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("drawing", "drawing.png")
	part.Write(encodeTestPNG(t))
	writer.WriteField("session_id", sessionID)
	writer.WriteField("type", "castle")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/drawings/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid type, got %d", rec.Code)
	}
}

func TestUploadRejectsCorruptImage(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.startSession(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("drawing", "drawing.png")
	part.Write([]byte("this is not a png"))
	writer.WriteField("session_id", sessionID)
	writer.WriteField("type", "house")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/drawings/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for undecodable image, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "corrupt") {
		t.Errorf("unexpected error body: %s", rec.Body.String())
	}
}

func TestColorAnalysisEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.startSession(t)
	drawingID := env.upload(t, sessionID, htp.TypeHouse)
	env.pipeline.Wait()

	rec := env.do(t, http.MethodPost, "/api/colors", map[string]string{
		"session_id": sessionID,
		"drawing_id": drawingID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("color analysis returned %d: %s", rec.Code, rec.Body.String())
	}
	var profile htp.ColorProfile
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profile.Step != 2 || len(profile.Colors) == 0 {
		t.Errorf("unexpected profile %+v", profile)
	}

	// The profile must also be merged into the stored result.
	d, err := env.store.GetDrawing(context.Background(), sessionID, drawingID)
	if err != nil {
		t.Fatalf("GetDrawing failed: %v", err)
	}
	if d.Result == nil || d.Result.Colors == nil {
		t.Error("color profile not persisted")
	}
}

func TestStep2QuestionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.startSession(t)
	drawingID := env.upload(t, sessionID, htp.TypeHouse)
	env.pipeline.Wait()

	rec := env.do(t, http.MethodGet,
		"/api/step2/question?session_id="+sessionID+"&drawing_id="+drawingID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("step2 question returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["question"] == "" {
		t.Error("expected a follow-up question")
	}
}

func TestReportRequiresCompleteSession(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.startSession(t)
	env.upload(t, sessionID, htp.TypeHouse)
	env.pipeline.Wait()

	rec := env.do(t, http.MethodPost, "/api/report/generate", map[string]string{
		"session_id": sessionID,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for incomplete session, got %d", rec.Code)
	}
}
