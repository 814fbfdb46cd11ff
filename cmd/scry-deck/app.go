package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/scry-deck/internal/config"
	"github.com/phrazzld/scry-deck/internal/deck"
	"github.com/phrazzld/scry-deck/internal/generation"
	"github.com/phrazzld/scry-deck/internal/pipeline"
	"github.com/phrazzld/scry-deck/internal/platform/apkg"
	"github.com/phrazzld/scry-deck/internal/platform/csvstore"
	"github.com/phrazzld/scry-deck/internal/platform/gemini"
	"github.com/phrazzld/scry-deck/internal/platform/logger"
	"github.com/phrazzld/scry-deck/internal/redact"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitFailure = 1
)

// generatorFactory builds the model client for a run.
type generatorFactory func(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Generator, error)

func newGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Generator, error) {
	return gemini.NewGenerator(ctx, logger, cfg)
}

// run loads configuration, wires the pipeline and executes one run.
// It returns the process exit code.
func run(ctx context.Context, args []string, newGenerator generatorFactory) int {
	cfg, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scry-deck: %s\n", redact.Error(err))
		return exitFailure
	}

	log, err := logger.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scry-deck: failed to set up logger: %v\n", err)
		return exitFailure
	}

	log.InfoContext(ctx, "Configuration loaded",
		"deck_name", cfg.Deck.Name,
		"scope", cfg.Deck.Scope,
		"model", cfg.LLM.ModelName,
		"data_dir", cfg.Storage.DataDir,
		"output_dir", cfg.Storage.OutputDir)

	p, err := newPipeline(ctx, cfg, log, newGenerator)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize pipeline", "error", redact.Error(err))
		return exitFailure
	}

	result := p.Run(ctx, pipeline.RequestFromConfig(cfg))
	if !result.OK() {
		log.ErrorContext(ctx, "Deck generation failed",
			"failed_at", result.FailedAt,
			"error", redact.Error(result.Err))
		return exitFailure
	}

	log.InfoContext(ctx, "Deck generated",
		"card_count", len(result.Batch),
		"store_path", result.StorePath,
		"deck_path", result.DeckPath)
	return exitOK
}

// newPipeline wires the production dependencies.
func newPipeline(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	newGenerator generatorFactory,
) (*pipeline.Pipeline, error) {
	gen, err := newGenerator(ctx, log, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	return pipeline.New(pipeline.Dependencies{
		Logger:    log,
		Generator: gen,
		Store:     csvstore.New(cfg.Storage.DataDir),
		Compiler:  deck.NewCompiler(nil),
		Exporter:  apkg.NewExporter(log),
	})
}
