package domain

import "strings"

// Flashcard is a single question/answer pair.
// Empty strings are allowed; a card has no identity beyond its position
// in a Batch.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// NewFlashcard creates a Flashcard from a question and an answer.
func NewFlashcard(question, answer string) Flashcard {
	return Flashcard{Question: question, Answer: answer}
}

// Fields returns the card's values in note field order (question, answer).
func (f Flashcard) Fields() []string {
	return []string{f.Question, f.Answer}
}

// Batch is the ordered set of flashcards produced by one generation call.
// Order is the model's emission order. Batches are never deduplicated.
type Batch []Flashcard

// FileStem turns a deck name into a file name stem that stays inside its
// directory. Path separators, control characters, and characters Windows
// rejects are replaced with '_'.
func FileStem(deckName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, strings.TrimSpace(deckName))

	if name == "." || name == ".." {
		return strings.Repeat("_", len(name))
	}
	return name
}
