package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/scry-deck/internal/config"
	"github.com/phrazzld/scry-deck/internal/deck"
	"github.com/phrazzld/scry-deck/internal/domain"
	"github.com/phrazzld/scry-deck/internal/generation"
	"github.com/phrazzld/scry-deck/internal/platform/apkg"
	"github.com/phrazzld/scry-deck/internal/redact"
)

// Store is the append-only flashcard store.
type Store interface {
	Append(deckName string, batch domain.Batch) error
	ReadAll(deckName string) (domain.Batch, error)
	Path(deckName string) string
}

// DeckCompiler builds a deck from cards.
type DeckCompiler interface {
	Compile(name string, cards domain.Batch) (*deck.Deck, error)
}

// Exporter writes a compiled deck to a package file.
type Exporter interface {
	Export(ctx context.Context, d *deck.Deck, path string) error
}

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	Logger    *slog.Logger
	Generator generation.Generator
	Store     Store
	Compiler  DeckCompiler
	Exporter  Exporter
}

// Request holds the per-run inputs.
type Request struct {
	DeckName string

	// InputText is the source text; when empty, InputFile is read instead.
	InputText string
	InputFile string

	// PromptTemplate is the template text; when empty, PromptTemplatePath is read.
	PromptTemplate     string
	PromptTemplatePath string

	// Scope is config.ScopeHistory (default) or config.ScopeBatch.
	Scope string

	// OutputDir receives <deck>.apkg.
	OutputDir string
}

// RequestFromConfig builds a Request from loaded configuration.
func RequestFromConfig(cfg *config.Config) Request {
	return Request{
		DeckName:           cfg.Deck.Name,
		InputText:          cfg.Input.Text,
		InputFile:          cfg.Input.File,
		PromptTemplatePath: cfg.LLM.PromptTemplatePath,
		Scope:              cfg.Deck.Scope,
		OutputDir:          cfg.Storage.OutputDir,
	}
}

// Result is the outcome of a run. Stage is StageDone or StageFailed; on
// failure FailedAt names the step and Err is a *StageError.
type Result struct {
	Stage     Stage
	FailedAt  Stage
	Err       error
	Batch     domain.Batch
	Deck      *deck.Deck
	StorePath string
	DeckPath  string
}

// OK reports whether the run reached StageDone.
func (r Result) OK() bool {
	return r.Stage == StageDone
}

// Pipeline runs the generation pipeline.
type Pipeline struct {
	logger    *slog.Logger
	generator generation.Generator
	store     Store
	compiler  DeckCompiler
	exporter  Exporter
}

// New creates a Pipeline. A nil Logger uses slog.Default and a nil Compiler
// uses deck.NewCompiler with random ids.
func New(deps Dependencies) (*Pipeline, error) {
	if deps.Generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if deps.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if deps.Exporter == nil {
		return nil, errors.New("exporter cannot be nil")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	compiler := deps.Compiler
	if compiler == nil {
		compiler = deck.NewCompiler(nil)
	}

	return &Pipeline{
		logger:    logger,
		generator: deps.Generator,
		store:     deps.Store,
		compiler:  compiler,
		exporter:  deps.Exporter,
	}, nil
}

// run carries values between steps.
type run struct {
	req       Request
	inputText string
	prompt    string
	batch     domain.Batch
	deck      *deck.Deck
	storePath string
	deckPath  string
}

type step struct {
	stage Stage
	fn    func(ctx context.Context, r *run) error
}

func (p *Pipeline) steps() []step {
	return []step{
		{StageReadInput, p.readInput},
		{StageCompilePrompt, p.compilePrompt},
		{StageGenerate, p.generate},
		{StageValidate, p.validate},
		{StagePersistStore, p.persistStore},
		{StageCompileDeck, p.compileDeck},
		{StageExportDeck, p.exportDeck},
	}
}

// Run executes every step in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	r := &run{req: req}
	logger := p.logger.With("deck_name", req.DeckName)

	logger.InfoContext(ctx, "Pipeline started", "stage", StageStart)

	for _, s := range p.steps() {
		logger.DebugContext(ctx, "Entering stage", "stage", s.stage)

		if err := s.fn(ctx, r); err != nil {
			failedAt := s.stage
			// Schema failures surface from the model call but belong to VALIDATE.
			if s.stage == StageGenerate && errors.Is(err, generation.ErrSchemaValidation) {
				failedAt = StageValidate
			}

			stageErr := &StageError{Stage: failedAt, Err: err}
			attrs := []any{
				"stage", StageFailed,
				"failed_at", failedAt,
				"error", err,
			}
			var schemaErr *generation.SchemaValidationError
			if errors.As(err, &schemaErr) {
				attrs = append(attrs, "raw_response", redact.String(truncate(string(schemaErr.Raw), maxLoggedPayload)))
			}
			logger.ErrorContext(ctx, "Pipeline failed", attrs...)
			return r.result(StageFailed, failedAt, stageErr)
		}
	}

	logger.InfoContext(ctx, "Pipeline finished",
		"stage", StageDone,
		"card_count", len(r.batch),
		"deck_note_count", len(r.deck.Notes),
		"store_path", r.storePath,
		"deck_path", r.deckPath)
	return r.result(StageDone, "", nil)
}

// maxLoggedPayload caps the raw model output attached to failure logs.
const maxLoggedPayload = 8 << 10

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

func (r *run) result(stage, failedAt Stage, err error) Result {
	return Result{
		Stage:     stage,
		FailedAt:  failedAt,
		Err:       err,
		Batch:     r.batch,
		Deck:      r.deck,
		StorePath: r.storePath,
		DeckPath:  r.deckPath,
	}
}

func (p *Pipeline) readInput(ctx context.Context, r *run) error {
	if strings.TrimSpace(r.req.DeckName) == "" {
		return deck.ErrEmptyDeckName
	}
	switch r.req.Scope {
	case "", config.ScopeHistory, config.ScopeBatch:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScope, r.req.Scope)
	}

	r.inputText = r.req.InputText
	if r.inputText == "" && r.req.InputFile != "" {
		content, err := os.ReadFile(r.req.InputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file %s: %w", r.req.InputFile, err)
		}
		r.inputText = string(content)
	}
	if strings.TrimSpace(r.inputText) == "" {
		return ErrEmptyInput
	}

	p.logger.DebugContext(ctx, "Input read", "input_length", len(r.inputText))
	return nil
}

// compilePrompt uses the inline template when one is given, otherwise the
// template file.
func (p *Pipeline) compilePrompt(ctx context.Context, r *run) error {
	var (
		tmpl *generation.PromptTemplate
		err  error
	)
	if r.req.PromptTemplate != "" {
		tmpl, err = generation.ParsePromptTemplate(r.req.PromptTemplate)
	} else {
		tmpl, err = generation.LoadPromptTemplate(r.req.PromptTemplatePath)
	}
	if err != nil {
		return err
	}

	prompt, err := tmpl.Compile(r.inputText)
	if err != nil {
		return err
	}
	r.prompt = prompt

	p.logger.DebugContext(ctx, "Prompt compiled", "prompt_length", len(prompt))
	return nil
}

func (p *Pipeline) generate(ctx context.Context, r *run) error {
	batch, err := p.generator.Generate(ctx, r.prompt)
	if err != nil {
		return err
	}
	r.batch = batch
	return nil
}

// validate checks the generator's contract. Payload validation itself runs
// inside the generator; its failures are attributed to this stage by Run.
func (p *Pipeline) validate(ctx context.Context, r *run) error {
	if r.batch == nil {
		return &generation.SchemaValidationError{Reason: "generator returned no batch"}
	}
	if len(r.batch) == 0 {
		p.logger.WarnContext(ctx, "Model returned no flashcards")
	}
	return nil
}

func (p *Pipeline) persistStore(ctx context.Context, r *run) error {
	if err := p.store.Append(r.req.DeckName, r.batch); err != nil {
		return err
	}
	r.storePath = p.store.Path(r.req.DeckName)

	p.logger.InfoContext(ctx, "Flashcards appended to store",
		"card_count", len(r.batch),
		"store_path", r.storePath)
	return nil
}

func (p *Pipeline) compileDeck(ctx context.Context, r *run) error {
	cards := r.batch
	if r.req.Scope != config.ScopeBatch {
		history, err := p.store.ReadAll(r.req.DeckName)
		if err != nil {
			return err
		}
		cards = history
	}

	d, err := p.compiler.Compile(r.req.DeckName, cards)
	if err != nil {
		return err
	}
	r.deck = d

	p.logger.DebugContext(ctx, "Deck compiled",
		"deck_id", d.ID,
		"model_id", d.Model.ID,
		"note_count", len(d.Notes))
	return nil
}

func (p *Pipeline) exportDeck(ctx context.Context, r *run) error {
	path := filepath.Join(r.req.OutputDir, domain.FileStem(r.req.DeckName)+apkg.FileExt)
	if err := p.exporter.Export(ctx, r.deck, path); err != nil {
		return err
	}
	r.deckPath = path
	return nil
}
