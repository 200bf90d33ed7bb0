package core

import "errors"

// Enforcement outcomes. Store failures are not represented here: they wrap
// the underlying driver error and propagate fail-closed, never folded into a
// denial.
var (
	// ErrAccessDenied means no grant channel matched. Callers translate it
	// to not-found for row lookups (existence must not leak) and to
	// forbidden for tile and export requests.
	ErrAccessDenied = errors.New("accesskit: access denied")

	// ErrUnsupportedFormat means the requested export format appears in no
	// download-eligible grant. Raised before any row I/O.
	ErrUnsupportedFormat = errors.New("accesskit: export format not permitted")

	// ErrDatasetNotCovered means the user is format-eligible but holds no
	// grant touching the requested dataset. Raised before any row I/O.
	ErrDatasetNotCovered = errors.New("accesskit: no grant covers requested dataset")
)
