// Package checkpoint implements the Checkpoint Manager (spec §4.4): a
// per-file snapshot store supporting create/list/read/delete, with the
// rename-follow invariant. Restoring a file from a snapshot is done by the
// Contents Manager, which writes the bytes returned by Read.
//
// Grounded on timeship/internal/adapter/local/zfs.go's shape (a dedicated
// type that finds a sibling snapshot area and enumerates entries by
// directory listing) but without any ZFS dependency: snapshots are plain
// copies of file bytes kept in a hidden sibling tree under the Contents
// Manager's own root, opened the same traversal-safe way via os.OpenRoot so
// the checkpoint store can never escape the root either.
package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/smilyorg/contentsd/internal/apierror"
)

// storeDir is the hidden top-level segment the checkpoint store lives
// under. The API cannot create or replace this directory itself: uploads
// reject a hidden final name (Invariant 4) and renames refuse an existing
// target. Paths beneath it are not blocked; an upload to a path under
// ".checkpoints/" writes into the store.
const storeDir = ".checkpoints"

// Checkpoint describes one snapshot as returned to clients (spec §4.4).
type Checkpoint struct {
	ID           string    `json:"id"`
	LastModified time.Time `json:"last_modified"`
}

// Manager owns the snapshot store. It is constructed with the same root
// directory as the Contents Manager but opens its own *os.Root handle so
// the two managers don't share mutable state beyond the filesystem itself
// (spec §3 "Ownership").
type Manager struct {
	root *os.Root
}

// New opens (creating if necessary) the checkpoint store under rootPath.
func New(rootPath string) (*Manager, error) {
	root, err := os.OpenRoot(rootPath)
	if err != nil {
		return nil, apierror.Wrap(err, "failed to open checkpoint store root")
	}
	if err := root.MkdirAll(storeDir, 0o755); err != nil && !os.IsExist(err) {
		root.Close()
		return nil, apierror.Wrap(err, "failed to create checkpoint store")
	}
	return &Manager{root: root}, nil
}

// Close releases the store's root handle.
func (m *Manager) Close() error {
	return m.root.Close()
}

func storePath(filePath string) string {
	return path.Join(storeDir, filePath)
}

// Create stores data as a snapshot of filePath, identified by an opaque,
// newly minted id. It does not check that filePath exists; the caller, the
// Contents Manager, reads the file first and so fails NotFound for a
// missing file before Create is reached.
func (m *Manager) Create(filePath string, data []byte) (*Checkpoint, error) {
	dir := storePath(filePath)
	if err := m.root.MkdirAll(dir, 0o755); err != nil {
		return nil, apierror.Wrap(err, "failed to create checkpoint directory")
	}

	id := uuid.NewString()
	snapPath := path.Join(dir, id)

	f, err := m.root.Create(snapPath)
	if err != nil {
		return nil, apierror.Wrap(err, "failed to create checkpoint")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		m.root.Remove(snapPath)
		return nil, apierror.Wrap(err, "failed to write checkpoint")
	}
	if err := f.Close(); err != nil {
		m.root.Remove(snapPath)
		return nil, apierror.Wrap(err, "failed to close checkpoint")
	}

	info, err := m.root.Stat(snapPath)
	if err != nil {
		return nil, apierror.Wrap(err, "failed to stat checkpoint")
	}

	return &Checkpoint{ID: id, LastModified: info.ModTime()}, nil
}

// List returns every checkpoint recorded for filePath. Ordering is
// unspecified (spec §4.4).
func (m *Manager) List(filePath string) ([]Checkpoint, error) {
	dir := storePath(filePath)
	f, err := m.root.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Checkpoint{}, nil
		}
		return nil, apierror.Wrap(err, "failed to list checkpoints")
	}
	infos, err := f.Readdir(-1)
	f.Close()
	if err != nil {
		return nil, apierror.Wrap(err, "failed to list checkpoints")
	}

	out := make([]Checkpoint, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		out = append(out, Checkpoint{ID: info.Name(), LastModified: info.ModTime()})
	}
	return out, nil
}

// Read returns the bytes stored for a given checkpoint id.
func (m *Manager) Read(filePath, id string) ([]byte, error) {
	snapPath := path.Join(storePath(filePath), id)
	f, err := m.root.Open(snapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierror.NotFoundf("checkpoint %s not found", id)
		}
		return nil, apierror.Wrap(err, "failed to open checkpoint")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apierror.Wrap(err, "failed to read checkpoint")
	}
	return data, nil
}

// Delete removes a single checkpoint. Deleting an id that doesn't exist is
// reported as NotFound.
func (m *Manager) Delete(filePath, id string) error {
	snapPath := path.Join(storePath(filePath), id)
	if err := m.root.Remove(snapPath); err != nil {
		if os.IsNotExist(err) {
			return apierror.NotFoundf("checkpoint %s not found", id)
		}
		return apierror.Wrap(err, "failed to delete checkpoint")
	}
	return nil
}

// Follow re-binds every checkpoint recorded at oldPath to newPath. The
// Contents Manager calls this synchronously as part of handling a rename,
// so the rebind is visible to the very next checkpoint listing at newPath
// (spec §5 atomicity requirement, testable property #6).
func (m *Manager) Follow(oldPath, newPath string) error {
	oldDir := storePath(oldPath)
	if _, err := m.root.Stat(oldDir); err != nil {
		if os.IsNotExist(err) {
			// Nothing was ever checkpointed at oldPath; nothing to move.
			return nil
		}
		return apierror.Wrap(err, "failed to stat checkpoint directory")
	}

	newDir := storePath(newPath)
	if err := m.root.MkdirAll(path.Dir(newDir), 0o755); err != nil {
		return apierror.Wrap(err, "failed to prepare checkpoint directory")
	}
	if err := m.root.Rename(oldDir, newDir); err != nil {
		return apierror.Wrap(err, fmt.Sprintf("failed to move checkpoints from %s to %s", oldPath, newPath))
	}
	return nil
}

// RemoveAll deletes every checkpoint recorded for filePath, used when the
// Contents Manager deletes the file itself.
func (m *Manager) RemoveAll(filePath string) error {
	dir := storePath(filePath)
	if err := m.root.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return apierror.Wrap(err, "failed to remove checkpoints")
	}
	return nil
}
