package pipeline

import "errors"

var (
	// ErrEmptyInput is returned when the source text is empty.
	ErrEmptyInput = errors.New("input text cannot be empty")

	// ErrUnknownScope is returned for a deck scope other than history or batch.
	ErrUnknownScope = errors.New("unknown deck scope")
)
