package extract

import "errors"

// ErrUnsupportedFormat signals a file the extractor does not handle.
// Callers treat it as a silent no-op, not a user-visible failure.
var ErrUnsupportedFormat = errors.New("extract: unsupported format")
