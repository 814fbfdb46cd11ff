// Package generation defines the boundary between the deck pipeline and an
// external LLM. It owns the flashcard response schema, the format
// instructions embedded into prompts, prompt compilation from a user
// template, and the Generator interface that provider adapters (Gemini)
// implement.
package generation
