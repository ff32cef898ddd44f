package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/sjson"

	"speakcheck/internal/domain"
)

// FileArchive writes every result to <dir>/<id>.json so reports can be reopened later.
type FileArchive struct {
	dir   string
	newID func() string
	now   func() time.Time
}

func NewFileArchive(dir string) *FileArchive {
	return &FileArchive{
		dir:   dir,
		newID: func() string { return ulid.Make().String() },
		now:   time.Now,
	}
}

// Put stamps raw with result_id and saved_at and persists it atomically.
func (a *FileArchive) Put(_ context.Context, raw []byte) (string, []byte, error) {
	id := a.newID()
	stamped, err := sjson.SetBytes(raw, "result_id", id)
	if err != nil {
		return "", nil, fmt.Errorf("stamping result id: %w", err)
	}
	stamped, err = sjson.SetBytes(stamped, "saved_at", a.now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", nil, fmt.Errorf("stamping save time: %w", err)
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating archive directory: %w", err)
	}
	tmp := filepath.Join(a.dir, id+".json.tmp")
	if err := os.WriteFile(tmp, stamped, 0o644); err != nil {
		return "", nil, fmt.Errorf("writing result temp file: %w", err)
	}
	if err := os.Rename(tmp, a.path(id)); err != nil {
		_ = os.Remove(tmp)
		return "", nil, fmt.Errorf("persisting result file: %w", err)
	}
	return id, stamped, nil
}

// Get returns the archived result or domain.ErrResultNotFound.
func (a *FileArchive) Get(_ context.Context, id string) ([]byte, error) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrResultNotFound, id)
	}
	data, err := os.ReadFile(a.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrResultNotFound, id)
		}
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	return data, nil
}

func (a *FileArchive) path(id string) string {
	return filepath.Join(a.dir, id+".json")
}
