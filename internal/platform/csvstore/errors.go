package csvstore

import "errors"

var (
	// ErrStoreWrite is returned when appending to the store fails.
	ErrStoreWrite = errors.New("failed to write flashcard store")

	// ErrStoreRead is returned when the store cannot be read or holds a
	// malformed row.
	ErrStoreRead = errors.New("failed to read flashcard store")

	// ErrEmptyDeckName is returned when no deck name is given.
	ErrEmptyDeckName = errors.New("deck name cannot be empty")
)
