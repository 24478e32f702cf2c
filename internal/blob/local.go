package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes attachments to a directory on the local filesystem.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the content under a uuid-prefixed name so repeated uploads of
// the same filename never collide. The original name is kept for readability.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		name = "attachment"
	}
	path := filepath.Join(s.dir, uuid.NewString()+"_"+name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close attachment file: %w", err)
	}

	slog.InfoContext(ctx, "Attachment stored", "path", path)
	return path, nil
}

// Remove deletes a stored attachment. Paths outside the store directory are
// rejected.
func (s *LocalStore) Remove(ctx context.Context, path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %q is outside the upload directory", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove attachment: %w", err)
	}
	slog.InfoContext(ctx, "Attachment removed", "path", path)
	return nil
}

// sanitizeFilename reduces an uploaded filename to its base name and strips
// characters that are unsafe in paths.
func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
}
