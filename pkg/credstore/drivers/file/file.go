// Package file stores the credential record as a JSON object in a single
// file readable only by the current user.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Backend writes through renameio, so a crash mid-write leaves either the old
// record or the new one on disk.
type Backend struct {
	path string
}

// New returns a Backend for path, creating the parent directory.
func New(path string) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &Backend{path: path}, nil
}

func (b *Backend) Get(_ context.Context) (map[string]string, error) {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", b.path, err)
	}
	return values, nil
}

func (b *Backend) Put(_ context.Context, values map[string]string) error {
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	// Static permissions: a pre-existing file with a looser mode is not
	// carried over.
	pf, err := renameio.NewPendingFile(b.path, renameio.WithStaticPermissions(0o600))
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", b.path, err)
	}
	defer func() {
		_ = pf.Cleanup() // no-op after a successful replace
	}()

	if _, err := pf.Write(raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context) error {
	err := os.Remove(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (b *Backend) Close() error { return nil }
