package apkg

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/scry-deck/internal/deck"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// fieldSeparator joins note fields in notes.flds.
const fieldSeparator = "\x1f"

var htmlTagRegex = regexp.MustCompile(`(?s)<[^>]*>`)

type modelField struct {
	Name   string   `json:"name"`
	Ord    int      `json:"ord"`
	Sticky bool     `json:"sticky"`
	RTL    bool     `json:"rtl"`
	Font   string   `json:"font"`
	Size   int      `json:"size"`
	Media  []string `json:"media"`
}

type modelTemplate struct {
	Name  string `json:"name"`
	Ord   int    `json:"ord"`
	QFmt  string `json:"qfmt"`
	AFmt  string `json:"afmt"`
	BQFmt string `json:"bqfmt"`
	BAFmt string `json:"bafmt"`
	DID   *int64 `json:"did"`
}

type modelJSON struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      int             `json:"type"`
	Mod       int64           `json:"mod"`
	USN       int             `json:"usn"`
	SortF     int             `json:"sortf"`
	DID       int64           `json:"did"`
	Tmpls     []modelTemplate `json:"tmpls"`
	Flds      []modelField    `json:"flds"`
	CSS       string          `json:"css"`
	LatexPre  string          `json:"latexPre"`
	LatexPost string          `json:"latexPost"`
	Tags      []string        `json:"tags"`
	Vers      []int           `json:"vers"`
	Req       [][]any         `json:"req"`
}

type deckJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	Mod       int64  `json:"mod"`
	USN       int    `json:"usn"`
	Collapsed bool   `json:"collapsed"`
	NewToday  [2]int `json:"newToday"`
	RevToday  [2]int `json:"revToday"`
	LrnToday  [2]int `json:"lrnToday"`
	TimeToday [2]int `json:"timeToday"`
	Dyn       int    `json:"dyn"`
	ExtendNew int    `json:"extendNew"`
	ExtendRev int    `json:"extendRev"`
	Conf      int    `json:"conf"`
}

const latexPre = "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n" +
	"\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n" +
	"\\setlength{\\parindent}{0in}\n\\begin{document}\n"

const latexPost = "\\end{document}"

func newModelJSON(m *deck.NoteModel, deckID int64, mod time.Time) modelJSON {
	fields := make([]modelField, 0, len(m.Fields))
	for i, name := range m.Fields {
		fields = append(fields, modelField{Name: name, Ord: i, Font: "Arial", Size: 20, Media: []string{}})
	}

	tmpls := make([]modelTemplate, 0, len(m.Templates))
	for i, t := range m.Templates {
		tmpls = append(tmpls, modelTemplate{Name: t.Name, Ord: i, QFmt: t.Front, AFmt: t.Back})
	}

	// Every template needs the first field to produce a card.
	req := make([][]any, 0, len(tmpls))
	for i := range tmpls {
		req = append(req, []any{i, "any", []int{0}})
	}

	return modelJSON{
		ID:        m.ID,
		Name:      m.Name,
		Mod:       mod.Unix(),
		USN:       -1,
		DID:       deckID,
		Tmpls:     tmpls,
		Flds:      fields,
		CSS:       m.CSS,
		LatexPre:  latexPre,
		LatexPost: latexPost,
		Tags:      []string{},
		Vers:      []int{},
		Req:       req,
	}
}

func newDeckJSON(id int64, name string, mod time.Time) deckJSON {
	return deckJSON{
		ID:        id,
		Name:      name,
		Mod:       mod.Unix(),
		USN:       -1,
		ExtendRev: 50,
		Conf:      defaultDeckID,
	}
}

// collectionConf is the col.conf blob of a fresh collection.
func collectionConf(d *deck.Deck) map[string]any {
	return map[string]any{
		"activeDecks":   []int64{d.ID},
		"curDeck":       d.ID,
		"newSpread":     0,
		"collapseTime":  1200,
		"timeLim":       0,
		"estTimes":      true,
		"dueCounts":     true,
		"curModel":      strconv.FormatInt(d.Model.ID, 10),
		"nextPos":       len(d.Notes) + 1,
		"sortType":      "noteFld",
		"sortBackwards": false,
		"addToCur":      true,
	}
}

// deckConf is the default options group referenced by every deck.
func deckConf() map[string]any {
	return map[string]any{
		strconv.Itoa(defaultDeckID): map[string]any{
			"id":       defaultDeckID,
			"name":     "Default",
			"replayq":  true,
			"maxTaken": 60,
			"timer":    0,
			"autoplay": true,
			"mod":      0,
			"usn":      0,
			"dyn":      false,
			"lapse": map[string]any{
				"delays": []int{10}, "mult": 0, "minInt": 1, "leechFails": 8, "leechAction": 0,
			},
			"rev": map[string]any{
				"perDay": 100, "ease4": 1.3, "fuzz": 0.05, "minSpace": 1, "ivlFct": 1, "maxIvl": 36500, "bury": true,
			},
			"new": map[string]any{
				"perDay": 20, "delays": []int{1, 10}, "separate": true, "ints": []int{1, 4, 7},
				"initialFactor": 2500, "bury": true, "order": 1,
			},
		},
	}
}

// writeCollection creates the SQLite collection for d at dbPath.
func writeCollection(ctx context.Context, dbPath string, d *deck.Deck, now time.Time) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open collection database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply collection schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertCol(ctx, tx, d, now); err != nil {
		return err
	}
	if err := insertNotes(ctx, tx, d, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection: %w", err)
	}
	return db.Close()
}

func insertCol(ctx context.Context, tx *sql.Tx, d *deck.Deck, now time.Time) error {
	models := map[string]modelJSON{
		strconv.FormatInt(d.Model.ID, 10): newModelJSON(d.Model, d.ID, now),
	}
	decks := map[string]deckJSON{
		strconv.Itoa(defaultDeckID): newDeckJSON(defaultDeckID, "Default", now),
		strconv.FormatInt(d.ID, 10): newDeckJSON(d.ID, d.Name, now),
	}

	blobs := make([]string, 0, 4)
	for _, v := range []any{collectionConf(d), models, decks, deckConf()} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode collection metadata: %w", err)
		}
		blobs = append(blobs, string(b))
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		VALUES (1, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?, '{}')
	`,
		now.Unix(),
		now.UnixMilli(),
		now.UnixMilli(),
		schemaVersion,
		blobs[0], blobs[1], blobs[2], blobs[3],
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection row: %w", err)
	}
	return nil
}

func insertNotes(ctx context.Context, tx *sql.Tx, d *deck.Deck, now time.Time) error {
	noteStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		VALUES (?, ?, ?, ?, -1, '', ?, ?, ?, 0, '')
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare note insert: %w", err)
	}
	defer noteStmt.Close()

	cardStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data)
		VALUES (?, ?, ?, ?, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card insert: %w", err)
	}
	defer cardStmt.Close()

	// Note and card ids are millisecond timestamps, offset per row.
	base := now.UnixMilli()
	for i, note := range d.Notes {
		noteID := base + int64(i)
		sortField := ""
		if len(note.Fields) > 0 {
			sortField = note.Fields[0]
		}

		if _, err := noteStmt.ExecContext(ctx,
			noteID,
			note.GUID,
			note.Model.ID,
			now.Unix(),
			strings.Join(note.Fields, fieldSeparator),
			sortField,
			fieldChecksum(sortField),
		); err != nil {
			return fmt.Errorf("failed to insert note %d: %w", i, err)
		}

		for ord := range note.Model.Templates {
			cardID := base + int64(i*len(note.Model.Templates)+ord)
			if _, err := cardStmt.ExecContext(ctx,
				cardID,
				noteID,
				d.ID,
				ord,
				now.Unix(),
				i+1,
			); err != nil {
				return fmt.Errorf("failed to insert card for note %d: %w", i, err)
			}
		}
	}
	return nil
}

// fieldChecksum is the first 32 bits of the SHA-1 of the field with HTML
// tags removed, as Anki uses for duplicate detection.
func fieldChecksum(field string) int64 {
	sum := sha1.Sum([]byte(htmlTagRegex.ReplaceAllString(field, "")))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}
