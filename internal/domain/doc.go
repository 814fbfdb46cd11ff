// Package domain contains the core entities of the deck generator: the
// flashcard and the batch of flashcards produced by one generation call.
// It is independent of any model provider, storage format, or package format.
package domain
