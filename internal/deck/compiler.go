package deck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/scry-deck/internal/domain"
)

// ErrEmptyDeckName is returned when a deck is compiled without a name.
var ErrEmptyDeckName = errors.New("deck name cannot be empty")

// Compiler builds decks from flashcards.
type Compiler struct {
	ids IDSource
}

// NewCompiler creates a Compiler drawing identifiers from ids.
// A nil ids uses NewRandomIDs.
func NewCompiler(ids IDSource) *Compiler {
	if ids == nil {
		ids = NewRandomIDs()
	}
	return &Compiler{ids: ids}
}

// Compile builds one note model and one deck named name holding a note per
// card, in order. Model and deck ids are drawn independently, so compiling
// the same name twice yields two different decks.
func (c *Compiler) Compile(name string, cards domain.Batch) (*Deck, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyDeckName
	}

	modelID, err := c.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to draw note model id: %w", err)
	}
	deckID, err := c.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to draw deck id: %w", err)
	}

	model := newNoteModel(modelID)
	notes := make([]Note, 0, len(cards))
	for _, card := range cards {
		fields := card.Fields()
		notes = append(notes, Note{
			GUID:   NoteGUID(fields),
			Model:  model,
			Fields: fields,
		})
	}

	return &Deck{
		ID:    deckID,
		Name:  name,
		Model: model,
		Notes: notes,
	}, nil
}
