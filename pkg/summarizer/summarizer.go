// Package summarizer turns rule-engine analyses into natural-language
// narratives via an external LLM. Two backends are provided: the OpenAI
// API and a local Ollama server. Structured responses are parsed strictly;
// a malformed response is a hard failure of that call.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/drawmind/htp-server/pkg/htp"
)

// DrawingInput is the material for one per-drawing summary.
type DrawingInput struct {
	Type       htp.DrawingType
	Analysis   []htp.Interpretation
	EraseCount int
	ResetCount int
}

// UserContext is the minimal user identity passed with summary requests.
type UserContext struct {
	Name   string
	Gender string
}

// DrawingSummary pairs a drawing type with its finished narrative.
type DrawingSummary struct {
	Type    htp.DrawingType
	Summary string
}

// Client is the narrative summarizer consumed by the analysis pipeline.
type Client interface {
	// SummarizeDrawing produces the per-drawing counselor narrative.
	SummarizeDrawing(ctx context.Context, in DrawingInput, user UserContext) (string, error)
	// SynthesizeOverall combines all per-drawing narratives into the
	// session-wide summary and diagnosis line. Called at most once per
	// session.
	SynthesizeOverall(ctx context.Context, summaries []DrawingSummary, user UserContext) (*htp.AggregateSummary, error)
	// RefineColorNarrative polishes the draft color interpretation.
	RefineColorNarrative(ctx context.Context, draft string) (string, error)
}

// overallResponse is the JSON shape required from the model for the
// session-wide synthesis.
type overallResponse struct {
	PersonalizedOverall string            `json:"personalized_overall" jsonschema_description:"200~300자 내외의 전체 종합 해석"`
	PerDrawing          map[string]string `json:"per_drawing,omitempty" jsonschema_description:"그림 유형별 한 줄 해석"`
}

// fallbackDiagnosis is used when the diagnosis call itself fails; the
// aggregate must still carry a non-empty recommendation.
const fallbackDiagnosis = "전문가와의 상담이 권장됩니다."

// decodeModelJSON strictly parses a model response after stripping the
// usual wrapping noise. Unparseable responses are errors, never silently
// replaced with defaults.
func decodeModelJSON(raw string, v any) error {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return fmt.Errorf("model response is not a JSON object")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to parse model response: %w", err)
	}
	return nil
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments and trailing commas, and
// keeps only the outermost object. Models wrap JSON in markdown often
// enough that skipping this step makes parse failures routine.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "`"))

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
