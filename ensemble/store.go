package ensemble

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// Store persists bundles as a unit. Load returns ErrNotFound when nothing
// has been saved yet, a StorageError marked ErrDamagedBundle when the stored
// set cannot be rebuilt, and a plain StorageError when reading fails.
type Store interface {
	Save(ctx context.Context, b *Bundle) error
	Load(ctx context.Context) (*Bundle, error)
}

const artifactExt = ".gob"

// FileStore keeps a bundle as six files in one directory. Save writes a
// sibling staging directory and swaps it in with renames, so readers see
// either the old set or the new one.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, b *Bundle) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	blobs, err := EncodeBundle(b)
	if err != nil {
		return err
	}

	parent, base := filepath.Split(filepath.Clean(s.Dir))
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return errors.NewStorageError("save", s.Dir, err)
	}
	staging, err := os.MkdirTemp(parent, base+".staging-")
	if err != nil {
		return errors.NewStorageError("save", s.Dir, err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				err = multierror.Append(err, rmErr)
			}
		}
	}()

	for _, name := range ArtifactNames {
		if err := os.WriteFile(filepath.Join(staging, name+artifactExt), blobs[name], 0o600); err != nil {
			return errors.NewStorageError("save", name, err)
		}
	}

	backup := ""
	if _, statErr := os.Stat(s.Dir); statErr == nil {
		backup = staging + ".previous"
		if err := os.Rename(s.Dir, backup); err != nil {
			return errors.NewStorageError("save", s.Dir, err)
		}
	}
	if err := os.Rename(staging, s.Dir); err != nil {
		var result error = errors.NewStorageError("save", s.Dir, err)
		if backup != "" {
			if restoreErr := os.Rename(backup, s.Dir); restoreErr != nil {
				result = multierror.Append(result, restoreErr)
			}
		}
		return result
	}
	if backup != "" {
		// the new set is already in place, a leftover backup is harmless
		_ = os.RemoveAll(backup)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blobs := make(map[string][]byte, len(ArtifactNames))
	for _, name := range ArtifactNames {
		data, err := os.ReadFile(filepath.Join(s.Dir, name+artifactExt)) //nolint:gosec // directory comes from configuration
		switch {
		case err == nil:
			blobs[name] = data
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, errors.NewStorageError("load", name, err)
		}
	}
	return DecodeBundle(blobs)
}
