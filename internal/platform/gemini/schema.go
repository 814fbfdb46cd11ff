package gemini

import "google.golang.org/genai"

// ResponseSchema is the structured-output schema sent with every request.
// It matches the envelope accepted by generation.ParseBatch.
func ResponseSchema() *genai.Schema {
	card := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"question": {Type: genai.TypeString, Description: "The question for the flashcard"},
			"answer":   {Type: genai.TypeString, Description: "The answer for the flashcard"},
		},
		Required: []string{"question", "answer"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"flashcards": {Type: genai.TypeArray, Items: card},
		},
		Required: []string{"flashcards"},
	}
}
