package apkg

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/scry-deck/internal/deck"
)

const (
	collectionEntry = "collection.anki2"
	mediaEntry      = "media"
	// FileExt is the extension of Anki package files.
	FileExt = ".apkg"
)

// Exporter writes compiled decks to .apkg files.
type Exporter struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates an Exporter that logs through logger.
func NewExporter(logger *slog.Logger) *Exporter {
	return NewExporterWithClock(logger, time.Now)
}

// NewExporterWithClock creates an Exporter that stamps collections with now().
func NewExporterWithClock(logger *slog.Logger, now func() time.Time) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger, now: now}
}

// Export writes d as an Anki package at path, replacing any existing file.
// The parent directory is created when missing. Failures wrap ErrExport.
func (e *Exporter) Export(ctx context.Context, d *deck.Deck, path string) error {
	if d == nil || d.Model == nil {
		return fmt.Errorf("%w: deck and note model are required", ErrExport)
	}

	tmpDir, err := os.MkdirTemp("", "scry-deck-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp dir: %v", ErrExport, err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, collectionEntry)
	if err := writeCollection(ctx, dbPath, d, e.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrExport, err)
	}

	if err := writeArchive(path, dbPath); err != nil {
		return fmt.Errorf("%w: %v", ErrExport, err)
	}

	e.logger.InfoContext(ctx, "Deck package written",
		"deck_name", d.Name,
		"deck_id", d.ID,
		"note_count", len(d.Notes),
		"path", path)
	return nil
}

// writeArchive zips the collection database and an empty media map into path.
func writeArchive(path, dbPath string) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create package file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close package file: %w", closeErr)
		}
	}()

	zw := zip.NewWriter(out)
	if err := addFile(zw, collectionEntry, dbPath); err != nil {
		return errors.Join(err, zw.Close())
	}

	media, err := zw.Create(mediaEntry)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to add media map: %w", err), zw.Close())
	}
	if _, err := io.WriteString(media, "{}"); err != nil {
		return errors.Join(fmt.Errorf("failed to write media map: %w", err), zw.Close())
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish package archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, name, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
