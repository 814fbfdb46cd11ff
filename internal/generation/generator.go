package generation

import (
	"context"

	"github.com/phrazzld/scry-deck/internal/domain"
)

// Generator defines the interface for generating flashcards from a compiled
// prompt. It is the single boundary between the pipeline and an external
// model provider.
type Generator interface {
	// Generate sends the prompt to the model in one blocking request and
	// returns the validated batch.
	//
	// Errors wrap ErrAuthentication, ErrGeneration, or ErrSchemaValidation
	// (as *SchemaValidationError). No retry is performed.
	Generate(ctx context.Context, prompt string) (domain.Batch, error)
}
