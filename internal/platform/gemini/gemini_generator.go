package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/scry-deck/internal/config"
	"github.com/phrazzld/scry-deck/internal/domain"
	"github.com/phrazzld/scry-deck/internal/generation"
	"google.golang.org/genai"
)

// Temperature is fixed at zero for deterministic decoding.
const Temperature float32 = 0.0

const responseMIMEType = "application/json"

// contentGenerator is the part of *genai.Models the generator uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// models issues GenerateContent requests
	models contentGenerator

	// model is the name of the Gemini model to use
	model string
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGenerator creates a GeminiGenerator from the LLM configuration.
//
// A missing API key fails with generation.ErrAuthentication and a missing
// model name with generation.ErrInvalidConfig; neither makes a network call.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrAuthentication)
	}

	if strings.TrimSpace(cfg.ModelName) == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	logger.InfoContext(ctx, "Initialized Gemini generator", "model", cfg.ModelName)

	return newGenerator(logger, client.Models, cfg.ModelName), nil
}

func newGenerator(logger *slog.Logger, models contentGenerator, model string) *GeminiGenerator {
	return &GeminiGenerator{
		logger: logger,
		models: models,
		model:  model,
	}
}

// requestConfig is the fixed sampling and structured-output configuration.
func requestConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(Temperature),
		ResponseMIMEType: responseMIMEType,
		ResponseSchema:   ResponseSchema(),
	}
}

// Generate sends prompt to Gemini in a single request and validates the
// structured response into a batch.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (domain.Batch, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", generation.ErrGeneration)
	}

	g.logger.InfoContext(ctx, "Making Gemini API call",
		"model", g.model,
		"prompt_length", len(prompt))

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), requestConfig())
	if err != nil {
		classified := classifyError(err)
		g.logger.ErrorContext(ctx, "Gemini API call failed", "error", classified)
		return nil, classified
	}

	text, err := responseText(resp)
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini API returned no usable content", "error", err)
		return nil, err
	}

	batch, err := generation.ParseBatch([]byte(text))
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini response failed schema validation",
			"error", err,
			"response_length", len(text))
		g.logger.DebugContext(ctx, "Rejected Gemini response", "raw_response", text)
		return nil, err
	}

	g.logger.InfoContext(ctx, "Gemini API call successful", "card_count", len(batch))
	return batch, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrGeneration)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", generation.ErrGeneration, resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no content generated", generation.ErrGeneration)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrGeneration)
	}

	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrGeneration)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// classifyError maps provider errors onto the generation error taxonomy.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrGeneration, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && isAuthFailure(apiErr) {
		return fmt.Errorf("%w: %v", generation.ErrAuthentication, err)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && isAuthFailure(*apiErrPtr) {
		return fmt.Errorf("%w: %v", generation.ErrAuthentication, err)
	}

	return fmt.Errorf("%w: %v", generation.ErrGeneration, err)
}

// isAuthFailure reports whether the provider rejected the credential.
// Gemini answers an invalid key with 400 INVALID_ARGUMENT, so the message is
// checked as well as the status.
func isAuthFailure(apiErr genai.APIError) bool {
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	switch apiErr.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "api key not valid") || strings.Contains(msg, "api_key_invalid")
}
