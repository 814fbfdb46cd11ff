package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrPromptTemplate is returned when a prompt template cannot be read,
	// parsed, or executed, or lacks the input text placeholder.
	ErrPromptTemplate = errors.New("invalid prompt template")

	// ErrAuthentication is returned when the model provider rejects or is
	// missing the credential.
	ErrAuthentication = errors.New("model provider authentication failed")

	// ErrGeneration is returned for transport or provider failures during
	// the model call.
	ErrGeneration = errors.New("failed to generate flashcards from text")

	// ErrSchemaValidation is returned when the model output does not match
	// the flashcard schema.
	ErrSchemaValidation = errors.New("model response does not match flashcard schema")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// SchemaValidationError describes a model payload that failed schema
// validation. Raw holds the payload exactly as received.
type SchemaValidationError struct {
	Raw    []byte
	Reason string
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaValidation.Error(), e.Reason)
}

// Unwrap lets errors.Is match ErrSchemaValidation.
func (e *SchemaValidationError) Unwrap() error {
	return ErrSchemaValidation
}

func newSchemaError(raw []byte, format string, args ...any) *SchemaValidationError {
	return &SchemaValidationError{
		Raw:    append([]byte(nil), raw...),
		Reason: fmt.Sprintf(format, args...),
	}
}
