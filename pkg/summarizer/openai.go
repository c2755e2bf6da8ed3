package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/drawmind/htp-server/pkg/htp"
)

// OpenAIClient implements Client against the OpenAI Responses API. The
// session-wide synthesis uses a strict JSON schema so the aggregate always
// parses or fails loudly.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed summarizer.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &client, model: model}, nil
}

var overallSchema = generateSchema[overallResponse]()

// SummarizeDrawing produces the per-drawing narrative as plain text.
func (c *OpenAIClient) SummarizeDrawing(ctx context.Context, in DrawingInput, user UserContext) (string, error) {
	text, err := c.complete(ctx, drawingSystemPrompt, buildDrawingPrompt(in, user), nil)
	if err != nil {
		return "", fmt.Errorf("drawing summary failed: %w", err)
	}
	return text, nil
}

// SynthesizeOverall produces the schema-constrained session synthesis plus
// the one-line diagnosis recommendation.
func (c *OpenAIClient) SynthesizeOverall(ctx context.Context, summaries []DrawingSummary, user UserContext) (*htp.AggregateSummary, error) {
	format := &responses.ResponseFormatTextJSONSchemaConfigParam{
		Name:        "OverallSummary",
		Schema:      overallSchema,
		Strict:      openai.Bool(true),
		Description: openai.String("HTP session overall summary JSON"),
		Type:        "json_schema",
	}

	text, err := c.complete(ctx, overallSystemPrompt, buildOverallPrompt(summaries, user), format)
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

	diagnosis, err := c.complete(ctx, diagnosisSystemPrompt, "전체 해석문:\n"+out.PersonalizedOverall, nil)
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
func (c *OpenAIClient) RefineColorNarrative(ctx context.Context, draft string) (string, error) {
	text, err := c.complete(ctx, colorRefineSystemPrompt, "아래 색채 해석 초안을 간결하고 자연스럽게 다듬어줘.\n[초안]\n"+draft, nil)
	if err != nil {
		return "", fmt.Errorf("color narrative refinement failed: %w", err)
	}
	return text, nil
}

func (c *OpenAIClient) complete(ctx context.Context, instructions, input string, schema *responses.ResponseFormatTextJSONSchemaConfigParam) (string, error) {
	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(2000),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{OfJSONSchema: schema},
		}
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// generateSchema reflects a Go type into an OpenAI-compliant JSON schema:
// no additional properties, every listed property required.
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := schema.MarshalJSON()
	if err != nil {
		panic(fmt.Sprintf("summarizer: schema marshal: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(fmt.Sprintf("summarizer: schema unmarshal: %v", err))
	}
	ensureStrictSchema(m)
	return m
}

func ensureStrictSchema(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				ensureStrictSchema(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureStrictSchema(items)
	}
}
