package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/drawmind/htp-server/pkg/htp"
)

// OllamaClient implements Client against a local Ollama server, for
// deployments that keep the narrative generation on-premise.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates an Ollama-backed summarizer for the given server
// URL (path components such as /api/chat are ignored).
func NewOllamaClient(serverURL, model string) (*OllamaClient, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if model == "" {
		return nil, errors.New("ollama model is empty")
	}

	baseURL := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaClient{
		client: api.NewClient(baseURL, http.DefaultClient),
		model:  model,
	}, nil
}

// SummarizeDrawing produces the per-drawing narrative as plain text.
func (c *OllamaClient) SummarizeDrawing(ctx context.Context, in DrawingInput, user UserContext) (string, error) {
	text, err := c.chat(ctx, drawingSystemPrompt, buildDrawingPrompt(in, user))
	if err != nil {
		return "", fmt.Errorf("drawing summary failed: %w", err)
	}
	return text, nil
}

// SynthesizeOverall produces the session synthesis. Local models get no
// schema enforcement, so the response is sanitized and parsed strictly.
func (c *OllamaClient) SynthesizeOverall(ctx context.Context, summaries []DrawingSummary, user UserContext) (*htp.AggregateSummary, error) {
	text, err := c.chat(ctx, overallSystemPrompt, buildOverallPrompt(summaries, user))
	if err != nil {
		return nil, fmt.Errorf("overall synthesis failed: %w", err)
	}

	var out overallResponse
	if err := decodeModelJSON(text, &out); err != nil {
		return nil, fmt.Errorf("overall synthesis failed: %w", err)
	}
	if strings.TrimSpace(out.PersonalizedOverall) == "" {
		return nil, errors.New("overall synthesis failed: empty personalized_overall")
	}

	diagnosis, err := c.chat(ctx, diagnosisSystemPrompt, "전체 해석문:\n"+out.PersonalizedOverall)
	if err != nil || diagnosis == "" {
		diagnosis = fallbackDiagnosis
	}

	return &htp.AggregateSummary{
		OverallSummary:   strings.TrimSpace(out.PersonalizedOverall),
		DiagnosisSummary: diagnosis,
		PerDrawing:       out.PerDrawing,
	}, nil
}

// RefineColorNarrative polishes the draft color interpretation.
func (c *OllamaClient) RefineColorNarrative(ctx context.Context, draft string) (string, error) {
	text, err := c.chat(ctx, colorRefineSystemPrompt, "아래 색채 해석 초안을 간결하고 자연스럽게 다듬어줘.\n[초안]\n"+draft)
	if err != nil {
		return "", fmt.Errorf("color narrative refinement failed: %w", err)
	}
	return text, nil
}

func (c *OllamaClient) chat(ctx context.Context, system, user string) (string, error) {
	// Local models on CPU can be slow; cap the wait when the caller has
	// no deadline of its own.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &streamFalse,
	}

	var content string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("empty response from model")
	}
	return content, nil
}
