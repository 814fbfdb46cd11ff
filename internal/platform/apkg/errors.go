package apkg

import "errors"

// ErrExport is returned when a deck package cannot be written.
var ErrExport = errors.New("failed to export deck package")
