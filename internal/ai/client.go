package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/0xF3546/stockflow-frontend/internal/logger"
)

const DefaultModel = "gemini-2.5-flash"

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("AI client not configured")

const systemInstruction = `You review a retail stock portfolio.
Answer with a single JSON object with the keys analysis, recommendation,
action_command, confidence_score and risk_assessment.
recommendation is one of BUY, SELL, HOLD. risk_assessment is one of LOW, MEDIUM, HIGH.
action_command is empty for HOLD, otherwise a command of the form
"/buy SYMBOL QUANTITY" or "/sell SYMBOL QUANTITY".
Never propose a buy that costs more than cash_available.`

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client asks Gemini for portfolio reviews.
type Client struct {
	models generator
	model  string
	logger *logger.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client. An empty key yields a client whose reviews
// fail with ErrNotConfigured.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:  DefaultModel,
		logger: logger.NewSilent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if apiKey == "" {
		c.logger.Warn().Msg("GEMINI_API_KEY not set, AI review disabled")
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.models = gc.Models
	return c, nil
}

// Enabled reports whether reviews can be requested.
func (c *Client) Enabled() bool {
	return c != nil && c.models != nil
}

// ReviewPortfolio sends the payload to the model and parses its verdict.
func (c *Client) ReviewPortfolio(ctx context.Context, payload PortfolioPayload) (*Review, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("model", c.model).Int("positions", len(payload.Positions)).Msg("Requesting portfolio review")

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		ResponseMIMEType:  "application/json",
	}
	result, err := c.models.GenerateContent(ctx, c.model, genai.Text("Analyze this portfolio state: "+string(body)), config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate review: %w", err)
	}

	text, err := extractText(result)
	if err != nil {
		return nil, err
	}
	return parseReview(text)
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// parseReview decodes the model output, tolerating a markdown code fence.
func parseReview(text string) (*Review, error) {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var r Review
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &r); err != nil {
		return nil, fmt.Errorf("failed to parse AI JSON output: %w. Raw: %s", err, text)
	}

	r.Recommendation = strings.ToUpper(strings.TrimSpace(r.Recommendation))
	switch r.Recommendation {
	case "BUY", "SELL":
	case "HOLD", "":
		r.Recommendation = "HOLD"
		r.ActionCommand = ""
	default:
		return nil, fmt.Errorf("unknown recommendation %q", r.Recommendation)
	}
	r.RiskAssessment = strings.ToUpper(strings.TrimSpace(r.RiskAssessment))
	r.ActionCommand = strings.TrimSpace(r.ActionCommand)
	if r.ActionCommand != "" && !strings.HasPrefix(r.ActionCommand, "/buy ") && !strings.HasPrefix(r.ActionCommand, "/sell ") {
		r.ActionCommand = ""
	}
	return &r, nil
}
