package generation

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-deck/internal/domain"
)

// formatInstructions tells the model the exact JSON shape ParseBatch accepts.
const formatInstructions = "The output should be formatted as a JSON instance that conforms to the JSON schema below.\n" +
	"\n" +
	"As an example, for the schema {\"properties\": {\"foo\": {\"type\": \"array\", \"items\": {\"type\": \"string\"}}}, \"required\": [\"foo\"]}\n" +
	"the object {\"foo\": [\"bar\", \"baz\"]} is a well-formatted instance of the schema. " +
	"The object {\"properties\": {\"foo\": [\"bar\", \"baz\"]}} is not well-formatted.\n" +
	"\n" +
	"Here is the output schema:\n" +
	"```\n" +
	`{"type": "object", "properties": {"flashcards": {"type": "array", "items": {"type": "object", "properties": {"question": {"type": "string", "description": "The question for the flashcard"}, "answer": {"type": "string", "description": "The answer for the flashcard"}}, "required": ["question", "answer"]}}}, "required": ["flashcards"]}` +
	"\n```"

// FormatInstructions returns the machine-readable description of the
// response envelope that is embedded into every prompt.
func FormatInstructions() string {
	return formatInstructions
}

// cardPayload uses pointers so a missing or null field can be told apart
// from an empty string.
type cardPayload struct {
	Question *string `json:"question" validate:"required"`
	Answer   *string `json:"answer" validate:"required"`
}

type envelope struct {
	Flashcards []cardPayload `json:"flashcards" validate:"required,dive"`
}

var schemaValidator = newSchemaValidator()

func newSchemaValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseBatch validates a raw model payload against the flashcard schema and
// converts it into a Batch, preserving the payload's order.
//
// Any structural mismatch (malformed JSON, missing envelope, null entries,
// missing or null fields, wrong field types) returns a *SchemaValidationError
// carrying the raw payload.
func ParseBatch(raw []byte) (domain.Batch, error) {
	body := stripCodeFence(raw)
	if len(body) == 0 {
		return nil, newSchemaError(raw, "empty payload")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, newSchemaError(raw, "field %q has type %s, want %s",
				typeErr.Field, typeErr.Value, typeErr.Type)
		}
		return nil, newSchemaError(raw, "malformed JSON: %v", err)
	}

	if err := schemaValidator.Struct(env); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, newSchemaError(raw, "missing required field %s",
				strings.TrimPrefix(fieldErrs[0].Namespace(), "envelope."))
		}
		return nil, newSchemaError(raw, "%v", err)
	}

	batch := make(domain.Batch, 0, len(env.Flashcards))
	for _, card := range env.Flashcards {
		batch = append(batch, domain.NewFlashcard(*card.Question, *card.Answer))
	}
	return batch, nil
}

// stripCodeFence removes surrounding whitespace and an optional Markdown
// code fence (```json ... ```) around the payload.
func stripCodeFence(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = bytes.TrimPrefix(body, []byte("```"))
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}
