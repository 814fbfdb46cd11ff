// Package csvstore persists flashcards in an append-only CSV file per deck.
//
// Each row holds two columns (question, answer) with standard CSV escaping
// and the file has no header row. Existing bytes are never rewritten: new
// batches are appended. The store assumes a single writer per file; there is
// no locking, no transactional append, and no deduplication.
package csvstore
