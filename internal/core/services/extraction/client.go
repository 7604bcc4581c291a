package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"google.golang.org/genai"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/chunker"
	"github.com/alonsogarciap/financial-parsing-service/internal/pkg/config"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

// Extractor turns one rendered chunk into a list of raw statements.
// An empty result is a valid outcome: no statements in that chunk.
type Extractor interface {
	Extract(ctx context.Context, chunk chunker.Chunk) ([]RawStatement, error)
}

// Client calls the Gemini multimodal API with page images as primary
// evidence and embedded text, when present, as secondary evidence.
type Client struct {
	config config.LLMConfig
	client *genai.Client
	logger *slog.Logger
}

// Ensure interface compliance
var _ Extractor = (*Client)(nil)

// NewClient creates a new extraction client
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, apperrors.MissingCredential("GEMINI_API_KEY")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		config: cfg,
		client: client,
		logger: logger,
	}, nil
}

// Extract sends one chunk to the extraction service and parses the
// returned statement list. Failures are chunk-local extraction errors;
// the caller decides whether to continue with other chunks.
func (c *Client) Extract(ctx context.Context, chunk chunker.Chunk) ([]RawStatement, error) {
	parts := make([]*genai.Part, 0, len(chunk.Images)+1)
	for _, img := range chunk.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: "image/png",
				Data:     img.PNG,
			},
		})
	}

	prompt := extractionPrompt
	if chunk.HasText {
		prompt += "\n\nExtracted text (may be incomplete, use images as primary source):\n" + chunk.Text
	}
	parts = append(parts, &genai.Part{Text: prompt})

	result, err := c.client.Models.GenerateContent(
		ctx,
		c.config.GeminiModel,
		[]*genai.Content{{Role: genai.RoleUser, Parts: parts}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, apperrors.ExtractionFailed(err)
	}

	statements, err := parseStatements(result.Text())
	if err != nil {
		c.logger.Warn("malformed extraction response",
			slog.Int("start_page", chunk.Window.Start),
			slog.Int("end_page", chunk.Window.End),
			slog.Any("error", err))
		return nil, err
	}

	c.logger.Debug("chunk extracted",
		slog.Int("start_page", chunk.Window.Start),
		slog.Int("end_page", chunk.Window.End),
		slog.Int("statement_count", len(statements)))

	return statements, nil
}

// parseStatements parses the service's text answer into raw statements.
// The answer may arrive wrapped in a markdown fence; an empty array is
// a valid, non-error outcome.
func parseStatements(raw string) ([]RawStatement, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return []RawStatement{}, nil
	}

	var statements []RawStatement
	if err := json.Unmarshal([]byte(raw), &statements); err != nil {
		// LLM output is occasionally slightly malformed; try repair
		// before giving up on the chunk.
		repaired, repErr := jsonrepair.RepairJSON(raw)
		if repErr != nil {
			return nil, apperrors.ExtractionInvalidResponse(fmt.Sprintf("response is not valid JSON: %v", err))
		}
		if err := json.Unmarshal([]byte(repaired), &statements); err != nil {
			return nil, apperrors.ExtractionInvalidResponse(fmt.Sprintf("repaired response does not match schema: %v", err))
		}
	}

	for i := range statements {
		if err := statements[i].Validate(); err != nil {
			return nil, apperrors.ExtractionInvalidResponse(err.Error())
		}
	}

	return statements, nil
}

// stripCodeFence removes a leading/trailing markdown fence
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
