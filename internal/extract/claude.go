package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/retry"
	"github.com/showdeck/importer/pkg/anthropic"
)

const structuredSystemText = "You are a tour manager's assistant extracting show details from booking emails, contracts, and itineraries. Return valid JSON matching the requested schema. Use empty strings for fields not present in the text; never invent values."

const structuredPrompt = `Extract every distinct show/event from the text below.

Output JSON schema:
{
  "events": [
    {
      "title":      {"value": "<event or show title>", "confidence": <0.0-1.0>},
      "date":       {"value": "<YYYY-MM-DD>", "confidence": <0.0-1.0>},
      "city":       {"value": "<city>", "confidence": <0.0-1.0>},
      "venue_name": {"value": "<venue>", "confidence": <0.0-1.0>},
      "set_time":   {"value": "<HH:MM 24h>", "confidence": <0.0-1.0>},
      "guarantee":  {"value": "<amount with currency symbol>", "confidence": <0.0-1.0>},
      "notes":      {"value": "<other material terms>", "confidence": <0.0-1.0>},
      "contacts":   [{"name": "", "email": "", "phone": ""}]
    }
  ]
}

Text:
%TEXT%

Return only the JSON object.`

// ClaudeExtractor implements AIExtractor on the Anthropic messages API.
type ClaudeExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     retry.Config
}

// NewClaudeExtractor creates the AI pass backed by the given model.
func NewClaudeExtractor(client anthropic.Client, model string, maxTokens int64) *ClaudeExtractor {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &ClaudeExtractor{client: client, model: model, maxTokens: maxTokens, retry: retry.Default()}
}

func (c *ClaudeExtractor) ExtractStructured(ctx context.Context, text string) (*model.StructuredExtraction, error) {
	prompt := strings.Replace(structuredPrompt, "%TEXT%", text, 1)

	temp := 0.0
	resp, err := retry.Do(ctx, c.retry, "anthropic.CreateMessage", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			System:      anthropic.BuildCachedSystemBlocks(structuredSystemText),
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: create message")
	}
	resp.Usage.LogCost(resp.Model, "structured_extraction")

	raw := firstText(resp)
	if raw == "" {
		return nil, eris.New("extract: empty model response")
	}

	se, err := ParseStructuredResponse(raw)
	if err != nil {
		return nil, err
	}
	se.Model = resp.Model
	return se, nil
}

func firstText(resp *anthropic.MessageResponse) string {
	for _, b := range resp.Content {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return ""
}

// ParseStructuredResponse parses the model's JSON, tolerating markdown code
// fences and leading prose before the first brace.
func ParseStructuredResponse(raw string) (*model.StructuredExtraction, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.Index(s, "{"); idx > 0 {
		s = s[idx:]
	}

	var se model.StructuredExtraction
	if err := json.Unmarshal([]byte(s), &se); err != nil {
		return nil, eris.Wrap(err, "extract: parse structured response")
	}
	return &se, nil
}
