package deck

import "github.com/google/uuid"

// Note field and template definitions shared by every compiled deck.
const (
	ModelName        = "Simple Model"
	QuestionField    = "Question"
	AnswerField      = "Answer"
	CardTemplateName = "Card 1"
	FrontTemplate    = "{{Question}}"
	BackTemplate     = `{{FrontSide}}<hr id="answer">{{Answer}}`

	// DefaultCSS is the card styling Anki applies to new basic models.
	DefaultCSS = ".card {\n font-family: arial;\n font-size: 20px;\n text-align: center;\n color: black;\n background-color: white;\n}\n"
)

// guidNamespace scopes note GUIDs so they cannot collide with other
// name-based UUIDs built from the same text.
var guidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/phrazzld/scry-deck/note"))

// Template is one card template of a note model.
type Template struct {
	Name  string
	Front string
	Back  string
}

// NoteModel is the field and template definition shared by all notes in a deck.
type NoteModel struct {
	ID        int64
	Name      string
	Fields    []string
	Templates []Template
	CSS       string
}

// Note is one flashcard bound to a NoteModel.
type Note struct {
	GUID   string
	Model  *NoteModel
	Fields []string
}

// Deck is a compiled, exportable deck.
type Deck struct {
	ID    int64
	Name  string
	Model *NoteModel
	Notes []Note
}

// newNoteModel returns the fixed question/answer model with the given id.
func newNoteModel(id int64) *NoteModel {
	return &NoteModel{
		ID:     id,
		Name:   ModelName,
		Fields: []string{QuestionField, AnswerField},
		Templates: []Template{
			{Name: CardTemplateName, Front: FrontTemplate, Back: BackTemplate},
		},
		CSS: DefaultCSS,
	}
}

// NoteGUID derives a stable GUID from a note's field values, so the same
// question and answer always map to the same note when imported into Anki.
// Identical cards share a GUID and collapse into one note on import, even
// when the store holds them more than once.
func NoteGUID(fields []string) string {
	var data []byte
	for i, f := range fields {
		if i > 0 {
			data = append(data, 0x1f)
		}
		data = append(data, f...)
	}
	return uuid.NewSHA1(guidNamespace, data).String()
}
