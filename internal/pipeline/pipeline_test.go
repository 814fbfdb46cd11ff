package pipeline_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phrazzld/scry-deck/internal/config"
	"github.com/phrazzld/scry-deck/internal/deck"
	"github.com/phrazzld/scry-deck/internal/domain"
	"github.com/phrazzld/scry-deck/internal/generation"
	"github.com/phrazzld/scry-deck/internal/pipeline"
	"github.com/phrazzld/scry-deck/internal/platform/apkg"
	"github.com/phrazzld/scry-deck/internal/platform/csvstore"
	"github.com/phrazzld/scry-deck/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = "Make cards from:\n{{.InputText}}\n\n{{.FormatInstructions}}"

// fakeGenerator returns canned results and records prompts.
type fakeGenerator struct {
	batches []domain.Batch
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (domain.Batch, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return domain.Batch{}, nil
	}
	next := f.batches[0]
	f.batches = f.batches[1:]
	return next, nil
}

// recordingExporter captures the deck instead of writing a package.
type recordingExporter struct {
	deck *deck.Deck
	path string
	err  error
}

func (e *recordingExporter) Export(_ context.Context, d *deck.Deck, path string) error {
	if e.err != nil {
		return e.err
	}
	e.deck = d
	e.path = path
	return nil
}

// failingStore refuses writes.
type failingStore struct{ appendCalls int }

func (s *failingStore) Append(string, domain.Batch) error {
	s.appendCalls++
	return fmt.Errorf("%w: disk full", csvstore.ErrStoreWrite)
}

func (s *failingStore) ReadAll(string) (domain.Batch, error) { return nil, nil }

func (s *failingStore) Path(name string) string { return name + ".csv" }

type fixture struct {
	dataDir   string
	outDir    string
	generator *fakeGenerator
	store     *csvstore.Store
	exporter  *recordingExporter
	pipeline  *pipeline.Pipeline
}

func newFixture(t *testing.T, batches ...domain.Batch) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		dataDir:   filepath.Join(root, "data"),
		outDir:    filepath.Join(root, "out"),
		generator: &fakeGenerator{batches: batches},
		exporter:  &recordingExporter{},
	}
	f.store = csvstore.New(f.dataDir)

	_, log := logger.NewTestLogger(t)
	p, err := pipeline.New(pipeline.Dependencies{
		Logger:    log,
		Generator: f.generator,
		Store:     f.store,
		Compiler:  deck.NewCompiler(deck.NewSeededIDs(1, 2)),
		Exporter:  f.exporter,
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *fixture) request(scope string) pipeline.Request {
	return pipeline.Request{
		DeckName:       "Biology",
		InputText:      "Cells are the basic unit of life.",
		PromptTemplate: testTemplate,
		Scope:          scope,
		OutputDir:      f.outDir,
	}
}

func batchOf(pairs ...string) domain.Batch {
	batch := make(domain.Batch, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		batch = append(batch, domain.NewFlashcard(pairs[i], pairs[i+1]))
	}
	return batch
}

func noteFields(d *deck.Deck) [][]string {
	fields := make([][]string, 0, len(d.Notes))
	for _, n := range d.Notes {
		fields = append(fields, n.Fields)
	}
	return fields
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()

	batch := batchOf("What is a cell?", "The basic unit of life.", "Who coined it?", "Robert Hooke")
	f := newFixture(t, batch)

	result := f.pipeline.Run(context.Background(), f.request(config.ScopeHistory))

	require.True(t, result.OK(), "run should succeed: %v", result.Err)
	assert.Equal(t, pipeline.StageDone, result.Stage)
	assert.Empty(t, result.FailedAt)
	assert.NoError(t, result.Err)
	assert.Equal(t, batch, result.Batch)

	require.Len(t, f.generator.prompts, 1)
	assert.Contains(t, f.generator.prompts[0], "Cells are the basic unit of life.")
	assert.Contains(t, f.generator.prompts[0], generation.FormatInstructions())

	assert.Equal(t, filepath.Join(f.dataDir, "Biology.csv"), result.StorePath)
	stored, err := f.store.ReadAll("Biology")
	require.NoError(t, err)
	assert.Equal(t, batch, stored)

	require.NotNil(t, result.Deck)
	assert.Equal(t, "Biology", result.Deck.Name)
	assert.Equal(t, [][]string{
		{"What is a cell?", "The basic unit of life."},
		{"Who coined it?", "Robert Hooke"},
	}, noteFields(result.Deck))
	assert.NotEqual(t, result.Deck.ID, result.Deck.Model.ID)

	assert.Equal(t, filepath.Join(f.outDir, "Biology.apkg"), result.DeckPath)
	assert.Equal(t, result.DeckPath, f.exporter.path)
	assert.Same(t, result.Deck, f.exporter.deck)
}

func TestRunScope(t *testing.T) {
	t.Parallel()

	first := batchOf("q1", "a1", "q2", "a2")
	second := batchOf("q3", "a3")

	tests := []struct {
		name  string
		scope string
		want  [][]string
	}{
		{
			name:  "history compiles every stored row",
			scope: config.ScopeHistory,
			want:  [][]string{{"q1", "a1"}, {"q2", "a2"}, {"q3", "a3"}},
		},
		{
			name:  "empty scope defaults to history",
			scope: "",
			want:  [][]string{{"q1", "a1"}, {"q2", "a2"}, {"q3", "a3"}},
		},
		{
			name:  "batch compiles only this run",
			scope: config.ScopeBatch,
			want:  [][]string{{"q3", "a3"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, first, second)
			require.True(t, f.pipeline.Run(context.Background(), f.request(tc.scope)).OK())

			result := f.pipeline.Run(context.Background(), f.request(tc.scope))
			require.True(t, result.OK(), "second run should succeed: %v", result.Err)
			assert.Equal(t, second, result.Batch)
			assert.Equal(t, tc.want, noteFields(result.Deck))

			stored, err := f.store.ReadAll("Biology")
			require.NoError(t, err)
			want := append(append(domain.Batch{}, first...), second...)
			assert.Equal(t, want, stored, "store should hold both batches in order")
		})
	}
}

func TestRunFailureStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(f *fixture, req *pipeline.Request)
		wantStage pipeline.Stage
		wantErr   error
	}{
		{
			name:      "empty input text",
			mutate:    func(_ *fixture, req *pipeline.Request) { req.InputText = "  " },
			wantStage: pipeline.StageReadInput,
			wantErr:   pipeline.ErrEmptyInput,
		},
		{
			name:      "empty deck name",
			mutate:    func(_ *fixture, req *pipeline.Request) { req.DeckName = "" },
			wantStage: pipeline.StageReadInput,
			wantErr:   deck.ErrEmptyDeckName,
		},
		{
			name:      "unknown scope",
			mutate:    func(_ *fixture, req *pipeline.Request) { req.Scope = "everything" },
			wantStage: pipeline.StageReadInput,
			wantErr:   pipeline.ErrUnknownScope,
		},
		{
			name: "missing template file",
			mutate: func(f *fixture, req *pipeline.Request) {
				req.PromptTemplate = ""
				req.PromptTemplatePath = filepath.Join(f.dataDir, "missing.tmpl")
			},
			wantStage: pipeline.StageCompilePrompt,
			wantErr:   generation.ErrPromptTemplate,
		},
		{
			name:      "template without input placeholder",
			mutate:    func(_ *fixture, req *pipeline.Request) { req.PromptTemplate = "{{.FormatInstructions}}" },
			wantStage: pipeline.StageCompilePrompt,
			wantErr:   generation.ErrPromptTemplate,
		},
		{
			name: "authentication failure",
			mutate: func(f *fixture, _ *pipeline.Request) {
				f.generator.err = fmt.Errorf("%w: status 401", generation.ErrAuthentication)
			},
			wantStage: pipeline.StageGenerate,
			wantErr:   generation.ErrAuthentication,
		},
		{
			name: "provider failure",
			mutate: func(f *fixture, _ *pipeline.Request) {
				f.generator.err = fmt.Errorf("%w: status 500", generation.ErrGeneration)
			},
			wantStage: pipeline.StageGenerate,
			wantErr:   generation.ErrGeneration,
		},
		{
			name: "schema validation failure",
			mutate: func(f *fixture, _ *pipeline.Request) {
				_, err := generation.ParseBatch([]byte(`{"cards": []}`))
				f.generator.err = err
			},
			wantStage: pipeline.StageValidate,
			wantErr:   generation.ErrSchemaValidation,
		},
		{
			name: "export failure",
			mutate: func(f *fixture, _ *pipeline.Request) {
				f.exporter.err = fmt.Errorf("%w: read-only", apkg.ErrExport)
			},
			wantStage: pipeline.StageExportDeck,
			wantErr:   apkg.ErrExport,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, batchOf("q", "a"))
			req := f.request(config.ScopeHistory)
			tc.mutate(f, &req)

			result := f.pipeline.Run(context.Background(), req)

			assert.False(t, result.OK())
			assert.Equal(t, pipeline.StageFailed, result.Stage)
			assert.Equal(t, tc.wantStage, result.FailedAt)
			require.Error(t, result.Err)
			assert.ErrorIs(t, result.Err, tc.wantErr)

			var stageErr *pipeline.StageError
			require.True(t, errors.As(result.Err, &stageErr))
			assert.Equal(t, tc.wantStage, stageErr.Stage)
		})
	}
}

func TestRunFailureBeforePersistLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.generator.err = &generation.SchemaValidationError{Raw: []byte("not json"), Reason: "bad"}

	result := f.pipeline.Run(context.Background(), f.request(config.ScopeHistory))

	require.Equal(t, pipeline.StageValidate, result.FailedAt)
	_, err := os.Stat(f.store.Path("Biology"))
	assert.True(t, os.IsNotExist(err), "store file should not exist after a validation failure")
	assert.Nil(t, f.exporter.deck, "exporter should not run")
}

func TestRunSchemaFailureLogsRawResponse(t *testing.T) {
	t.Parallel()

	raw := "Sure! Here are your cards: RAW_MODEL_OUTPUT key=AIza" + strings.Repeat("x", 35)
	_, parseErr := generation.ParseBatch([]byte(raw))
	require.Error(t, parseErr)

	var buf bytes.Buffer
	p, err := pipeline.New(pipeline.Dependencies{
		Logger:    logger.New(&buf, "info"),
		Generator: &fakeGenerator{err: parseErr},
		Store:     csvstore.New(t.TempDir()),
		Exporter:  &recordingExporter{},
	})
	require.NoError(t, err)

	result := p.Run(context.Background(), pipeline.Request{
		DeckName:       "Biology",
		InputText:      "text",
		PromptTemplate: testTemplate,
		OutputDir:      t.TempDir(),
	})
	require.Equal(t, pipeline.StageValidate, result.FailedAt)

	var failure map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Pipeline failed" {
			failure = entry
		}
	}
	require.NotNil(t, failure, "failure should be logged at info level and above")
	assert.Equal(t, "ERROR", failure["level"])

	logged, ok := failure["raw_response"].(string)
	require.True(t, ok, "failure log should carry the raw model output")
	assert.Contains(t, logged, "RAW_MODEL_OUTPUT")
	assert.NotContains(t, logged, "AIza", "credentials in the payload should be redacted")
}

func TestRunStoreFailureStopsBeforeExport(t *testing.T) {
	t.Parallel()

	_, log := logger.NewTestLogger(t)
	store := &failingStore{}
	exporter := &recordingExporter{}
	p, err := pipeline.New(pipeline.Dependencies{
		Logger:    log,
		Generator: &fakeGenerator{batches: []domain.Batch{batchOf("q", "a")}},
		Store:     store,
		Exporter:  exporter,
	})
	require.NoError(t, err)

	result := p.Run(context.Background(), pipeline.Request{
		DeckName:       "Biology",
		InputText:      "text",
		PromptTemplate: testTemplate,
		OutputDir:      t.TempDir(),
	})

	assert.Equal(t, pipeline.StagePersistStore, result.FailedAt)
	assert.ErrorIs(t, result.Err, csvstore.ErrStoreWrite)
	assert.Equal(t, 1, store.appendCalls)
	assert.Nil(t, result.Deck)
	assert.Nil(t, exporter.deck)
}

func TestRunReadsInputAndTemplateFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, batchOf("q", "a"))
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "notes.txt")
	templatePath := filepath.Join(dir, "prompt.tmpl")
	require.NoError(t, os.WriteFile(inputPath, []byte("Mitochondria make ATP."), 0o600))
	require.NoError(t, os.WriteFile(templatePath, []byte("Source: {{.InputText}}"), 0o600))

	req := f.request(config.ScopeHistory)
	req.InputText = ""
	req.InputFile = inputPath
	req.PromptTemplate = ""
	req.PromptTemplatePath = templatePath

	result := f.pipeline.Run(context.Background(), req)

	require.True(t, result.OK(), "run should succeed: %v", result.Err)
	require.Len(t, f.generator.prompts, 1)
	assert.Contains(t, f.generator.prompts[0], "Source: Mitochondria make ATP.")
	assert.Contains(t, f.generator.prompts[0], generation.FormatInstructions())
}

func TestRunEmptyBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.Batch{})
	result := f.pipeline.Run(context.Background(), f.request(config.ScopeBatch))

	require.True(t, result.OK(), "an empty batch is not an error: %v", result.Err)
	assert.Empty(t, result.Batch)
	require.NotNil(t, result.Deck)
	assert.Empty(t, result.Deck.Notes)
}

func TestRunSanitizesDeckFileNames(t *testing.T) {
	t.Parallel()

	f := newFixture(t, batchOf("q", "a"))
	req := f.request(config.ScopeHistory)
	req.DeckName = "../Bio/Chem"

	result := f.pipeline.Run(context.Background(), req)

	require.True(t, result.OK(), "run should succeed: %v", result.Err)
	assert.Equal(t, filepath.Join(f.outDir, domain.FileStem(req.DeckName)+apkg.FileExt), result.DeckPath)
	assert.Equal(t, f.outDir, filepath.Dir(result.DeckPath))
	assert.Equal(t, f.dataDir, filepath.Dir(result.StorePath))
	assert.Equal(t, "../Bio/Chem", result.Deck.Name, "deck title keeps the original name")
}

func TestRunWithPackageExporter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, log := logger.NewTestLogger(t)
	p, err := pipeline.New(pipeline.Dependencies{
		Logger:    log,
		Generator: &fakeGenerator{batches: []domain.Batch{batchOf("q", "a")}},
		Store:     csvstore.New(filepath.Join(root, "data")),
		Exporter:  apkg.NewExporter(log),
	})
	require.NoError(t, err)

	result := p.Run(context.Background(), pipeline.Request{
		DeckName:       "Biology",
		InputText:      "text",
		PromptTemplate: testTemplate,
		OutputDir:      root,
	})
	require.True(t, result.OK(), "run should succeed: %v", result.Err)

	zr, err := zip.OpenReader(result.DeckPath)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	names := make([]string, 0, len(zr.File))
	for _, file := range zr.File {
		names = append(names, file.Name)
	}
	assert.ElementsMatch(t, []string{"collection.anki2", "media"}, names)
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	store := csvstore.New(t.TempDir())
	exporter := &recordingExporter{}

	tests := []struct {
		name string
		deps pipeline.Dependencies
	}{
		{"missing generator", pipeline.Dependencies{Store: store, Exporter: exporter}},
		{"missing store", pipeline.Dependencies{Generator: gen, Exporter: exporter}},
		{"missing exporter", pipeline.Dependencies{Generator: gen, Store: store}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := pipeline.New(tc.deps)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}

	p, err := pipeline.New(pipeline.Dependencies{Generator: gen, Store: store, Exporter: exporter})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestRequestFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Deck:    config.DeckConfig{Name: "Biology", Scope: config.ScopeBatch},
		LLM:     config.LLMConfig{PromptTemplatePath: "prompts/flashcards.tmpl"},
		Input:   config.InputConfig{Text: "text", File: "notes.txt"},
		Storage: config.StorageConfig{DataDir: "data", OutputDir: "out"},
	}

	assert.Equal(t, pipeline.Request{
		DeckName:           "Biology",
		InputText:          "text",
		InputFile:          "notes.txt",
		PromptTemplatePath: "prompts/flashcards.tmpl",
		Scope:              config.ScopeBatch,
		OutputDir:          "out",
	}, pipeline.RequestFromConfig(cfg))
}

func TestStageErrorFormatting(t *testing.T) {
	t.Parallel()

	err := &pipeline.StageError{Stage: pipeline.StageGenerate, Err: generation.ErrGeneration}
	assert.Equal(t, "GENERATE: "+generation.ErrGeneration.Error(), err.Error())
	assert.ErrorIs(t, err, generation.ErrGeneration)
}
