// Package gemini provides an implementation of the generation.Generator interface
// that uses Google's Gemini API for generating flashcards from a compiled prompt.
//
// This package is an infrastructure adapter: it connects the pipeline to the
// external Gemini service without exposing the details of that service to
// the rest of the application.
//
// Each call is a single GenerateContent request with deterministic sampling
// (temperature 0) and structured output: the response MIME type is JSON and a
// response schema mirrors the flashcard envelope. The returned text is then
// validated by generation.ParseBatch. There is no retry; provider errors are
// classified into generation.ErrAuthentication or generation.ErrGeneration and
// returned to the caller.
//
// The package depends on Google's google.golang.org/genai client library.
package gemini
