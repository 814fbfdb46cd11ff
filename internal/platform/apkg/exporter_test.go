package apkg_test

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/phrazzld/scry-deck/internal/deck"
	"github.com/phrazzld/scry-deck/internal/domain"
	"github.com/phrazzld/scry-deck/internal/platform/apkg"
	"github.com/phrazzld/scry-deck/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func compileDeck(t *testing.T, name string, cards domain.Batch) *deck.Deck {
	t.Helper()
	d, err := deck.NewCompiler(deck.NewSeededIDs(1, 2)).Compile(name, cards)
	require.NoError(t, err)
	return d
}

func newExporter(t *testing.T) *apkg.Exporter {
	t.Helper()
	_, l := logger.NewTestLogger(t)
	return apkg.NewExporterWithClock(l, func() time.Time { return fixedTime })
}

// openCollection extracts collection.anki2 from the package at path and opens it.
func openCollection(t *testing.T, path string) (*sql.DB, []string) {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	dbPath := filepath.Join(t.TempDir(), "collection.anki2")
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		switch f.Name {
		case "collection.anki2":
			require.NoError(t, os.WriteFile(dbPath, content, 0o600))
		case "media":
			assert.Equal(t, "{}", string(content))
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, names
}

func TestExportWritesAnkiPackage(t *testing.T) {
	t.Parallel()

	d := compileDeck(t, "Biology", domain.Batch{
		domain.NewFlashcard("Q1", "A1"),
		domain.NewFlashcard("Q2", "<b>A2</b>"),
	})
	path := filepath.Join(t.TempDir(), "out", "Biology.apkg")

	require.NoError(t, newExporter(t).Export(context.Background(), d, path))

	db, names := openCollection(t, path)
	assert.ElementsMatch(t, []string{"collection.anki2", "media"}, names)

	rows, err := db.Query(`SELECT guid, mid, flds, sfld FROM notes ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var flds []string
	for rows.Next() {
		var guid, fields, sortField string
		var mid int64
		require.NoError(t, rows.Scan(&guid, &mid, &fields, &sortField))
		assert.Equal(t, d.Model.ID, mid)
		assert.NotEmpty(t, guid)
		flds = append(flds, fields)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Q1\x1fA1", "Q2\x1f<b>A2</b>"}, flds)

	var cardCount int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM cards WHERE did = ?`, d.ID).Scan(&cardCount))
	assert.Equal(t, 2, cardCount)

	var ver int
	var modelsBlob, decksBlob string
	require.NoError(t, db.QueryRow(`SELECT ver, models, decks FROM col`).Scan(&ver, &modelsBlob, &decksBlob))
	assert.Equal(t, 11, ver)

	var decks map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(decksBlob), &decks))
	require.Contains(t, decks, strconv.FormatInt(d.ID, 10))
	assert.Equal(t, "Biology", decks[strconv.FormatInt(d.ID, 10)]["name"])

	var models map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(modelsBlob), &models))
	require.Contains(t, models, strconv.FormatInt(d.Model.ID, 10))
	model := models[strconv.FormatInt(d.Model.ID, 10)]
	assert.Equal(t, deck.ModelName, model["name"])
	tmpls, ok := model["tmpls"].([]any)
	require.True(t, ok)
	require.Len(t, tmpls, 1)
	assert.Equal(t, deck.BackTemplate, tmpls[0].(map[string]any)["afmt"])
}

func TestExportOverwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Deck.apkg")
	exporter := newExporter(t)

	first := compileDeck(t, "Deck", domain.Batch{
		domain.NewFlashcard("Q1", "A1"),
		domain.NewFlashcard("Q2", "A2"),
		domain.NewFlashcard("Q3", "A3"),
	})
	require.NoError(t, exporter.Export(context.Background(), first, path))

	second := compileDeck(t, "Deck", domain.Batch{domain.NewFlashcard("Only", "One")})
	require.NoError(t, exporter.Export(context.Background(), second, path))

	db, _ := openCollection(t, path)
	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM notes`).Scan(&count))
	assert.Equal(t, 1, count, "second export should replace, not merge")
}

func TestExportEmptyDeck(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Empty.apkg")
	require.NoError(t, newExporter(t).Export(context.Background(), compileDeck(t, "Empty", nil), path))

	db, _ := openCollection(t, path)
	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM notes`).Scan(&count))
	assert.Zero(t, count)
}

func TestExportErrors(t *testing.T) {
	t.Parallel()

	exporter := newExporter(t)

	t.Run("nil deck", func(t *testing.T) {
		t.Parallel()
		err := exporter.Export(context.Background(), nil, filepath.Join(t.TempDir(), "x.apkg"))
		assert.ErrorIs(t, err, apkg.ErrExport)
	})

	t.Run("unwritable path", func(t *testing.T) {
		t.Parallel()
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		d := compileDeck(t, "Deck", domain.Batch{domain.NewFlashcard("q", "a")})
		err := exporter.Export(context.Background(), d, filepath.Join(blocker, "Deck.apkg"))
		assert.ErrorIs(t, err, apkg.ErrExport)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		d := compileDeck(t, "Deck", domain.Batch{domain.NewFlashcard("q", "a")})
		err := exporter.Export(ctx, d, filepath.Join(t.TempDir(), "Deck.apkg"))
		assert.ErrorIs(t, err, apkg.ErrExport)
	})
}
