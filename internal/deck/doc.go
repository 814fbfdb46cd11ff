// Package deck compiles flashcards into an in-memory Anki deck: one note
// model (Question and Answer fields, one card template) and one deck holding
// a note per flashcard. Compilation is pure; identifiers come from an
// IDSource so tests can make them deterministic.
package deck
