package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/scry-deck/internal/domain"
)

const (
	fileExt  = ".csv"
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store reads and appends flashcard rows under a data directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the CSV file used for deckName.
func (s *Store) Path(deckName string) string {
	return filepath.Join(s.dir, domain.FileStem(deckName)+fileExt)
}

// Append writes one row per card, in batch order. The file is created
// without a header when missing and opened for append otherwise.
func (s *Store) Append(deckName string, batch domain.Batch) error {
	if strings.TrimSpace(deckName) == "" {
		return fmt.Errorf("%w: %w", ErrStoreWrite, ErrEmptyDeckName)
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("%w: failed to create data directory %s: %v", ErrStoreWrite, s.dir, err)
	}

	path := s.Path(deckName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", ErrStoreWrite, path, err)
	}

	w := csv.NewWriter(f)
	for i, card := range batch {
		if err := w.Write(card.Fields()); err != nil {
			_ = f.Close()
			return fmt.Errorf("%w: failed to write row %d to %s: %v", ErrStoreWrite, i, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: failed to flush %s: %v", ErrStoreWrite, path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %v", ErrStoreWrite, path, err)
	}
	return nil
}

// ReadAll returns every row stored for deckName in file order.
// A missing file yields an empty batch. Line breaks inside fields are read
// back as "\n": encoding/csv folds a quoted "\r\n" to "\n", so a card whose
// text contained CRLF comes back with LF line endings.
func (s *Store) ReadAll(deckName string) (domain.Batch, error) {
	path := s.Path(deckName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Batch{}, nil
		}
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrStoreRead, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	batch := domain.Batch{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrStoreRead, path, err)
		}
		batch = append(batch, domain.NewFlashcard(record[0], record[1]))
	}
	return batch, nil
}
