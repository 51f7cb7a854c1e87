package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/samsarahq/go/oops"
)

// FileStore keeps the snapshot as a JSON file on local disk.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, oops.Wrapf(err, "read state file %s", f.Path)
	}
	snapshot, err := decode(data)
	if err != nil {
		return nil, oops.Wrapf(err, "decode state file %s", f.Path)
	}
	return snapshot, nil
}

// Save writes the snapshot to a temporary file next to Path and renames it
// over Path, so readers never observe a partial file.
func (f *FileStore) Save(ctx context.Context, snapshot Snapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return oops.Wrapf(err, "encode state")
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return oops.Wrapf(err, "create temp state file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return oops.Wrapf(err, "write temp state file %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return oops.Wrapf(err, "sync temp state file %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return oops.Wrapf(err, "close temp state file %s", tmpName)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return oops.Wrapf(err, "replace state file %s", f.Path)
	}
	return nil
}
