// Package apkg exports compiled decks as Anki packages.
//
// An .apkg file is a zip archive holding collection.anki2, a SQLite database
// in Anki's schema version 11, and media, a JSON map of bundled media files
// (always empty here). The database is written with modernc.org/sqlite so the
// exporter needs no cgo.
package apkg
