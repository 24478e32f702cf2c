// Package blob stores transaction attachments. The ledger only keeps the
// returned path; the bytes live outside the database.
package blob

import (
	"context"
	"io"
)

// Store is the attachment storage port. Save must complete before the
// transaction referencing the attachment is recorded.
type Store interface {
	// Save persists the reader's content under a name derived from filename
	// and returns the path to reference from a transaction.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)

	// Remove deletes a previously saved attachment. Callers use it to clean
	// up after a failed transaction insert; best effort.
	Remove(ctx context.Context, path string) error
}
