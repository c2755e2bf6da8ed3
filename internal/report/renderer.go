// Package report renders the final PDF report by delegating to an external
// Python script. The session snapshot is passed as JSON on stdin; the
// script writes the PDF to the path named in the payload.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/drawmind/htp-server/pkg/htp"
)

// Config locates the renderer script and its output directory.
type Config struct {
	PythonPath string
	ScriptPath string
	OutputDir  string
}

// Renderer shells out to the Python report generator.
type Renderer struct {
	config Config
}

// New creates a Renderer.
func New(config Config) *Renderer {
	if config.PythonPath == "" {
		config.PythonPath = "python3"
	}
	return &Renderer{config: config}
}

// drawingPayload is the per-drawing slice of the snapshot handed to the
// script.
type drawingPayload struct {
	Type     string            `json:"type"`
	Duration int               `json:"duration"`
	Image    string            `json:"image"`
	Summary  string            `json:"summary,omitempty"`
	Analysis *htp.Analysis     `json:"analysis,omitempty"`
	Colors   *htp.ColorProfile `json:"colorAnalysis,omitempty"`
}

type reportPayload struct {
	User struct {
		Name   string `json:"name"`
		Gender string `json:"gender"`
		Birth  string `json:"birth"`
	} `json:"user"`
	Drawings         []drawingPayload `json:"drawings"`
	OverallSummary   string           `json:"overall_summary"`
	DiagnosisSummary string           `json:"diagnosis_summary"`
	OutPDF           string           `json:"_out_pdf"`
}

// Render produces the PDF for a session and returns the output path.
func (r *Renderer) Render(ctx context.Context, sess *htp.Session) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	outPath := filepath.Join(r.config.OutputDir, fmt.Sprintf("htp-report-%s.pdf", sess.ID))

	var payload reportPayload
	payload.User.Name = sess.Name
	payload.User.Gender = sess.Gender
	payload.User.Birth = sess.Birth
	payload.OverallSummary = sess.OverallSummary
	payload.DiagnosisSummary = sess.DiagnosisSummary
	payload.OutPDF = outPath

	for _, d := range sess.Drawings {
		dp := drawingPayload{
			Type:     string(d.Type),
			Duration: d.Duration,
			Image:    d.Path,
		}
		if d.Result != nil {
			dp.Summary = d.Result.Summary
			dp.Analysis = d.Result.Analysis
			dp.Colors = d.Result.Colors
		}
		payload.Drawings = append(payload.Drawings, dp)
	}

	input, err := json.Marshal(&payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode report payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.config.PythonPath, r.config.ScriptPath)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("report generation failed: %s: %w", msg, err)
		}
		return "", fmt.Errorf("report generation failed: %w", err)
	}
	return outPath, nil
}
