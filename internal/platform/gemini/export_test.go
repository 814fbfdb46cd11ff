package gemini

import "log/slog"

// NewGeneratorForTest builds a generator around a fake GenerateContent backend.
func NewGeneratorForTest(logger *slog.Logger, models contentGenerator, model string) *GeminiGenerator {
	return newGenerator(logger, models, model)
}

// RequestConfig exposes the request configuration to tests.
var RequestConfig = requestConfig
