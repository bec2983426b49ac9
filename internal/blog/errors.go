package blog

import "errors"

// Sentinel errors for the conditions callers are expected to branch on.
// Wrap with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	// ErrNotFound indicates a referenced blob, archive, group or post
	// does not exist. Not retryable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArchive indicates an archive whose manifest is missing
	// or unparsable. Raised before any live data is touched.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrConflict indicates a duplicate unique name (group create or
	// rename). No mutation is performed.
	ErrConflict = errors.New("name already in use")

	// ErrBusy indicates a backup or restore is already in flight and
	// the busy policy is set to reject.
	ErrBusy = errors.New("another backup or restore is in progress")
)
