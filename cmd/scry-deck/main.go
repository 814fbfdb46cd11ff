// Package main implements the scry-deck command, which turns source text into
// question/answer flashcards with Gemini, appends them to a CSV store, and
// exports the deck as an Anki package.
//
// Usage:
//
//	scry-deck [flags] [deck-name [api-key [input-text]]]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], newGeminiGenerator)
	stop()

	if code != exitOK {
		fmt.Fprintln(os.Stderr, "scry-deck: run failed, see log for details")
	}
	os.Exit(code)
}
