package blog

import "blogback/internal/model"

// History records backup and restore runs for later inspection.
type History interface {
	// Begin records the start of an operation and returns its id.
	Begin(operation, archive string) (int64, error)

	// Finish marks an operation finished with the given status
	// ("success" or "error") and an optional message.
	Finish(id int64, status, message string) error

	// List returns the most recent operations, newest first.
	List(limit int) ([]*model.Operation, error)

	// Close releases the underlying connection.
	Close() error
}
