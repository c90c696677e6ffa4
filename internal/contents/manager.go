// Package contents implements the Contents Manager (spec §4.3): CRUD over
// directories, notebooks, and files rooted at a single configured
// directory, plus the Untitled/Copy naming policies.
//
// Grounded on timeship/internal/storage/local.Storage, the more complete of
// the teacher's two near-duplicate local-filesystem adapters (see
// DESIGN.md): traversal-safe access through a single os.Root handle,
// Readdir-based listing, and http.DetectContentType for MIME sniffing are
// all carried over from it. What changes is the domain: timeship exposes a
// VueFinder-shaped multi-backend file manager; this manager exposes the
// Jupyter-shaped notebook/file/directory model from spec §3, including the
// Untitled/Copy auto-naming policies and checkpoint-aware rename/delete
// that timeship's adapter never needed.
package contents

import (
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/smilyorg/contentsd/internal/apierror"
	"github.com/smilyorg/contentsd/internal/checkpoint"
	"github.com/smilyorg/contentsd/internal/entry"
	"github.com/smilyorg/contentsd/internal/filecodec"
	"github.com/smilyorg/contentsd/internal/notebook"
	"github.com/smilyorg/contentsd/internal/pathutil"
)

// copySuffixPattern recognizes a stem that already ends in "-CopyN", so
// that copying a copy continues the same numbering (spec §4.3, literal
// scenario 3 "copy a copy").
var copySuffixPattern = regexp.MustCompile(`^(.*)-Copy\d+$`)

// Manager owns the on-disk representation under root (spec §3 "Ownership").
type Manager struct {
	root        *os.Root
	rootPath    string
	checkpoints *checkpoint.Manager

	mu          sync.Mutex
	nameMutexes map[string]*sync.Mutex
}

// New opens root and returns a Manager backed by it. checkpoints may be nil
// for a Contents Manager with no checkpoint support wired in.
func New(rootPath string, checkpoints *checkpoint.Manager) (*Manager, error) {
	root, err := os.OpenRoot(rootPath)
	if err != nil {
		return nil, apierror.Wrap(err, "failed to open contents root")
	}
	return &Manager{
		root:        root,
		rootPath:    rootPath,
		checkpoints: checkpoints,
		nameMutexes: make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the root handle.
func (m *Manager) Close() error {
	return m.root.Close()
}

func relPath(cleaned string) string {
	if cleaned == "" {
		return "."
	}
	return cleaned
}

// lockParent serializes the auto-name search within one parent directory
// (spec §5: "MUST be a serialized search within a parent directory").
func (m *Manager) lockParent(parent string) func() {
	m.mu.Lock()
	mu, ok := m.nameMutexes[parent]
	if !ok {
		mu = &sync.Mutex{}
		m.nameMutexes[parent] = mu
	}
	m.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (m *Manager) exists(cleaned string) (bool, error) {
	_, err := m.root.Stat(relPath(cleaned))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apierror.Wrap(err, "failed to check existing name")
}

func (m *Manager) ensureDirExists(parent string) error {
	info, err := m.root.Stat(relPath(parent))
	if err != nil {
		if os.IsNotExist(err) {
			return apierror.NotFoundf("%s not found", parent)
		}
		return apierror.Wrap(err, "failed to stat parent directory")
	}
	if !info.IsDir() {
		return apierror.New(apierror.BadType, "%s is not a directory", parent)
	}
	return nil
}

// checkType enforces the requested-vs-actual type contract (spec §4.2),
// producing the two message shapes the literal test scenarios pin ("is not
// a directory", "is a directory, not a file") plus a third ("is a file, not
// a notebook") for a file/notebook mismatch.
func checkType(wantType *entry.Type, actualType entry.Type, apiPath string) error {
	if wantType == nil || *wantType == actualType {
		return nil
	}
	if *wantType == entry.TypeDirectory {
		return apierror.New(apierror.BadType, "%s is not a directory", apiPath)
	}
	if actualType == entry.TypeDirectory {
		return apierror.New(apierror.BadType, "%s is a directory, not a %s", apiPath, *wantType)
	}
	return apierror.New(apierror.BadType, "%s is a %s, not a %s", apiPath, actualType, *wantType)
}

func inferType(name string) entry.Type {
	if strings.HasSuffix(name, ".ipynb") {
		return entry.TypeNotebook
	}
	return entry.TypeFile
}

func baseEntry(cleaned string, info os.FileInfo, t entry.Type) *entry.Entry {
	_, name := pathutil.Split(cleaned)
	mtime := info.ModTime()
	e := &entry.Entry{
		Name:         name,
		Path:         cleaned,
		Type:         t,
		Created:      mtime,
		LastModified: mtime,
		Writable:     true,
	}
	if t == entry.TypeNotebook {
		e.Format = entry.FormatPtr(entry.FormatJSON)
	}
	return e
}

func (m *Manager) readFile(cleaned string) ([]byte, error) {
	f, err := m.root.Open(relPath(cleaned))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierror.NotFoundf("%s not found", cleaned)
		}
		return nil, apierror.Wrap(err, "failed to open file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apierror.Wrap(err, "failed to read file")
	}
	return data, nil
}

// writeBytes writes data to cleaned atomically: a temporary file is created
// alongside the destination and swapped in with a rename, so concurrent
// readers always observe either the old or the new content, never a torn
// write (spec §5). Grounded on the write-temp-then-rename recipe in
// mutagen-io/mutagen's pkg/filesystem/atomic.go, re-expressed over os.Root
// so the same traversal-safety guarantee applies to the temp file.
func (m *Manager) writeBytes(cleaned string, data []byte) error {
	dest := relPath(cleaned)
	temp := dest + ".tmp-" + uuid.NewString()

	f, err := m.root.OpenFile(temp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return apierror.Wrap(err, "failed to create temporary file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		m.root.Remove(temp)
		return apierror.Wrap(err, "failed to write file")
	}
	if err := f.Close(); err != nil {
		m.root.Remove(temp)
		return apierror.Wrap(err, "failed to close file")
	}
	if err := m.root.Rename(temp, dest); err != nil {
		m.root.Remove(temp)
		return apierror.Wrap(err, "failed to finalize write")
	}
	return nil
}

// Get implements spec §4.3 "get".
func (m *Manager) Get(apiPath string, content bool, wantType *entry.Type, wantFormat *entry.Format) (*entry.Entry, error) {
	cleaned := pathutil.Clean(apiPath)
	info, err := m.root.Stat(relPath(cleaned))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierror.NotFoundf("%s not found", cleaned)
		}
		return nil, apierror.Wrap(err, "failed to stat entry")
	}

	var actualType entry.Type
	switch {
	case info.IsDir():
		actualType = entry.TypeDirectory
	default:
		actualType = inferType(info.Name())
	}
	if err := checkType(wantType, actualType, cleaned); err != nil {
		return nil, err
	}

	switch actualType {
	case entry.TypeDirectory:
		return m.getDirectory(cleaned, info, content)
	case entry.TypeNotebook:
		return m.getNotebook(cleaned, info, content)
	default:
		return m.getFile(cleaned, info, content, wantFormat)
	}
}

func (m *Manager) getDirectory(cleaned string, info os.FileInfo, content bool) (*entry.Entry, error) {
	e := baseEntry(cleaned, info, entry.TypeDirectory)
	if !content {
		e.Content = nil
		return e, nil
	}

	f, err := m.root.Open(relPath(cleaned))
	if err != nil {
		return nil, apierror.Wrap(err, "failed to open directory")
	}
	defer f.Close()
	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, apierror.Wrap(err, "failed to list directory")
	}

	children := make([]*entry.Entry, 0, len(infos))
	for _, childInfo := range infos {
		// Hidden entries, including the checkpoint store, are not listed.
		if pathutil.IsHidden(childInfo.Name()) {
			continue
		}
		childPath := pathutil.Join(cleaned, childInfo.Name())
		childType := entry.TypeDirectory
		if !childInfo.IsDir() {
			childType = inferType(childInfo.Name())
		}
		child := baseEntry(childPath, childInfo, childType)
		children = append(children, child)
	}

	// Stable, locale-independent, case-insensitive ordering (Invariant 2).
	sort.Slice(children, func(i, j int) bool {
		li, lj := strings.ToLower(children[i].Name), strings.ToLower(children[j].Name)
		if li == lj {
			return children[i].Name < children[j].Name
		}
		return li < lj
	})

	e.Content = children
	return e, nil
}

func (m *Manager) getNotebook(cleaned string, info os.FileInfo, content bool) (*entry.Entry, error) {
	e := baseEntry(cleaned, info, entry.TypeNotebook)
	if !content {
		e.Content = nil
		return e, nil
	}

	data, err := m.readFile(cleaned)
	if err != nil {
		return nil, err
	}
	doc, err := notebook.Decode(data)
	if err != nil {
		return nil, err
	}
	if msg := notebook.Validate(doc); msg != "" {
		e.Message = msg
	}
	e.Content = doc
	return e, nil
}

func (m *Manager) getFile(cleaned string, info os.FileInfo, content bool, wantFormat *entry.Format) (*entry.Entry, error) {
	e := baseEntry(cleaned, info, entry.TypeFile)

	if !content {
		if guess := mime.TypeByExtension(pathutil.Ext(info.Name())); guess != "" {
			e.MimeType = entry.StringPtr(guess)
		}
		e.Format = nil
		e.Content = nil
		return e, nil
	}

	data, err := m.readFile(cleaned)
	if err != nil {
		return nil, err
	}
	e.MimeType = entry.StringPtr(http.DetectContentType(data))

	contentStr, format, err := filecodec.Encode(data, wantFormat)
	if err != nil {
		return nil, err
	}
	e.Format = entry.FormatPtr(format)
	e.Content = contentStr
	return e, nil
}

// firstUnusedName serializes name generation within parent and returns the
// first candidate nameFn(0), nameFn(1), ... that doesn't already exist.
func (m *Manager) firstUnusedName(parent string, nameFn func(n int) string) (string, error) {
	for n := 0; ; n++ {
		candidate := nameFn(n)
		taken, err := m.exists(pathutil.Join(parent, candidate))
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

// Create implements spec §4.3 "create": directory, extension-based
// auto-naming, or copy_from, depending on opts.
func (m *Manager) Create(parentPath string, opts CreateOptions) (*entry.Entry, error) {
	parent := pathutil.Clean(parentPath)
	if err := m.ensureDirExists(parent); err != nil {
		return nil, err
	}

	switch {
	case opts.CopyFrom != "":
		return m.copyInto(parent, opts.CopyFrom)
	case opts.Directory:
		return m.createDirectoryAutoNamed(parent)
	default:
		ext := opts.Ext
		if ext == "" {
			ext = ".ipynb"
		}
		return m.createFileAutoNamed(parent, ext)
	}
}

func (m *Manager) createDirectoryAutoNamed(parent string) (*entry.Entry, error) {
	unlock := m.lockParent(parent)
	defer unlock()

	name, err := m.firstUnusedName(parent, func(n int) string {
		if n == 0 {
			return "Untitled Folder"
		}
		return fmt.Sprintf("Untitled Folder %d", n)
	})
	if err != nil {
		return nil, err
	}

	fullPath := pathutil.Join(parent, name)
	if err := m.root.Mkdir(relPath(fullPath), 0o755); err != nil {
		return nil, apierror.Wrap(err, "failed to create directory")
	}
	return m.Get(fullPath, false, nil, nil)
}

func (m *Manager) createFileAutoNamed(parent, ext string) (*entry.Entry, error) {
	unlock := m.lockParent(parent)
	defer unlock()

	base := "Untitled"
	if ext == ".txt" {
		base = "untitled"
	}
	name, err := m.firstUnusedName(parent, func(n int) string {
		if n == 0 {
			return base + ext
		}
		return fmt.Sprintf("%s%d%s", base, n, ext)
	})
	if err != nil {
		return nil, err
	}

	fullPath := pathutil.Join(parent, name)
	data, err := emptyFileContent(ext)
	if err != nil {
		return nil, err
	}
	if err := m.writeBytes(fullPath, data); err != nil {
		return nil, err
	}
	return m.Get(fullPath, false, nil, nil)
}

func emptyFileContent(ext string) ([]byte, error) {
	if ext == ".ipynb" {
		return notebook.Encode(notebook.Document{
			"nbformat":       4,
			"nbformat_minor": 5,
			"metadata":       map[string]interface{}{},
			"cells":          []interface{}{},
		})
	}
	return []byte{}, nil
}

func stripCopySuffix(stem string) string {
	if m := copySuffixPattern.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	return stem
}

func (m *Manager) copyInto(destParent, copyFrom string) (*entry.Entry, error) {
	srcPath := pathutil.Clean(copyFrom)
	info, err := m.root.Stat(relPath(srcPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierror.NotFoundf("%s not found", srcPath)
		}
		return nil, apierror.Wrap(err, "failed to stat copy source")
	}
	if info.IsDir() {
		return nil, apierror.New(apierror.BadRequest, "%s is a directory", srcPath)
	}

	_, srcName := pathutil.Split(srcPath)
	ext := pathutil.Ext(srcName)
	base := stripCopySuffix(pathutil.Stem(srcName))

	unlock := m.lockParent(destParent)
	defer unlock()

	// Try the bare "S.E" name first (spec §4.3 literal scenario: copying
	// into a directory that doesn't already hold a same-named file must
	// not rename it), then "S-Copy1.E", "S-Copy2.E", ….
	name, err := m.firstUnusedName(destParent, func(n int) string {
		if n == 0 {
			return base + ext
		}
		return fmt.Sprintf("%s-Copy%d%s", base, n, ext)
	})
	if err != nil {
		return nil, err
	}

	data, err := m.readFile(srcPath)
	if err != nil {
		return nil, err
	}
	destPath := pathutil.Join(destParent, name)
	if err := m.writeBytes(destPath, data); err != nil {
		return nil, err
	}
	return m.Get(destPath, false, nil, nil)
}

// Upload implements spec §4.3 "upload". The returned bool reports whether
// the entry was newly created (true -> HTTP 201) or overwritten (false ->
// HTTP 200).
func (m *Manager) Upload(apiPath string, body UploadBody) (*entry.Entry, bool, error) {
	if body.CopyFrom != "" {
		return nil, false, apierror.New(apierror.BadRequest, "copy_from is not allowed on PUT")
	}

	cleaned := pathutil.Clean(apiPath)
	parent, name := pathutil.Split(cleaned)
	if pathutil.IsHidden(name) {
		return nil, false, apierror.New(apierror.BadRequest, "hidden names cannot be created: %s", cleaned)
	}
	if err := m.ensureDirExists(parent); err != nil {
		return nil, false, err
	}

	existed, err := m.exists(cleaned)
	if err != nil {
		return nil, false, err
	}

	if body.Type == entry.TypeDirectory {
		if !existed {
			if err := m.root.MkdirAll(relPath(cleaned), 0o755); err != nil {
				return nil, false, apierror.Wrap(err, "failed to create directory")
			}
		}
		e, err := m.Get(cleaned, false, nil, nil)
		return e, !existed, err
	}

	var data []byte
	switch body.Type {
	case entry.TypeNotebook:
		doc, ok := body.Content.(map[string]interface{})
		if !ok {
			return nil, false, apierror.New(apierror.BadRequest, "notebook content must be an object")
		}
		data, err = notebook.Encode(notebook.Document(doc))
	case entry.TypeFile:
		text, _ := body.Content.(string)
		data, err = filecodec.Decode(text, body.Format)
	default:
		return nil, false, apierror.New(apierror.BadRequest, "unsupported type %q for upload", body.Type)
	}
	if err != nil {
		return nil, false, err
	}

	if err := m.writeBytes(cleaned, data); err != nil {
		return nil, false, err
	}
	log.Printf("wrote %s (%s)", cleaned, humanize.Bytes(uint64(len(data))))

	e, err := m.Get(cleaned, false, nil, nil)
	return e, !existed, err
}

// Rename implements spec §4.3 "rename", including the checkpoint
// rename-follow invariant (spec §4.4).
func (m *Manager) Rename(apiPath, newAPIPath string) (*entry.Entry, error) {
	cleaned := pathutil.Clean(apiPath)
	newCleaned := pathutil.Clean(newAPIPath)

	if _, err := m.root.Stat(relPath(cleaned)); err != nil {
		if os.IsNotExist(err) {
			return nil, apierror.NotFoundf("%s not found", cleaned)
		}
		return nil, apierror.Wrap(err, "failed to stat entry")
	}

	if taken, err := m.exists(newCleaned); err != nil {
		return nil, err
	} else if taken {
		return nil, apierror.New(apierror.Conflict, "%s already exists", newCleaned)
	}

	newParent, _ := pathutil.Split(newCleaned)
	if err := m.ensureDirExists(newParent); err != nil {
		return nil, err
	}

	if err := m.root.Rename(relPath(cleaned), relPath(newCleaned)); err != nil {
		return nil, apierror.Wrap(err, "failed to rename entry")
	}

	if m.checkpoints != nil {
		if err := m.checkpoints.Follow(cleaned, newCleaned); err != nil {
			return nil, err
		}
	}

	return m.Get(newCleaned, false, nil, nil)
}

// Delete implements spec §4.3 "delete".
func (m *Manager) Delete(apiPath string) error {
	cleaned := pathutil.Clean(apiPath)
	info, err := m.root.Stat(relPath(cleaned))
	if err != nil {
		if os.IsNotExist(err) {
			return apierror.NotFoundf("%s not found", cleaned)
		}
		return apierror.Wrap(err, "failed to stat entry")
	}

	if info.IsDir() {
		if err := m.deleteDirectory(cleaned); err != nil {
			return err
		}
	} else {
		if err := m.root.Remove(relPath(cleaned)); err != nil {
			return apierror.Wrap(err, "failed to delete file")
		}
		if m.checkpoints != nil {
			m.checkpoints.RemoveAll(cleaned)
		}
	}
	return nil
}

// deleteDirectory removes every descendant before removing the directory
// itself, aggregating per-child failures instead of stopping at the first
// one (spec §4.3 "recursive directory delete ... MUST be supported where
// safe"; testable property #8). Grounded on weaveworks-libgitops's use of
// go.uber.org/multierr for the same collect-don't-short-circuit shape.
func (m *Manager) deleteDirectory(cleaned string) error {
	f, err := m.root.Open(relPath(cleaned))
	if err != nil {
		return apierror.Wrap(err, "failed to open directory")
	}
	infos, err := f.Readdir(-1)
	f.Close()
	if err != nil {
		return apierror.Wrap(err, "failed to list directory")
	}

	var errs error
	for _, info := range infos {
		childPath := pathutil.Join(cleaned, info.Name())
		if info.IsDir() {
			errs = multierr.Append(errs, m.deleteDirectory(childPath))
			continue
		}
		if err := m.root.Remove(relPath(childPath)); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if m.checkpoints != nil {
			m.checkpoints.RemoveAll(childPath)
		}
	}
	if errs != nil {
		return apierror.Wrap(errs, "failed to delete directory contents")
	}

	if err := m.root.Remove(relPath(cleaned)); err != nil {
		return apierror.Wrap(err, "failed to delete directory")
	}
	return nil
}

// CreateCheckpoint, ListCheckpoints, RestoreCheckpoint, and DeleteCheckpoint
// implement the Checkpoint Manager's public operations (spec §4.4) as seen
// through the Contents Manager, which is the only component that knows how
// to read and write a file's bytes.

func (m *Manager) CreateCheckpoint(apiPath string) (*checkpoint.Checkpoint, error) {
	if m.checkpoints == nil {
		return nil, apierror.New(apierror.NotFound, "checkpoints are not enabled")
	}
	cleaned := pathutil.Clean(apiPath)
	data, err := m.readFile(cleaned)
	if err != nil {
		return nil, err
	}
	return m.checkpoints.Create(cleaned, data)
}

func (m *Manager) ListCheckpoints(apiPath string) ([]checkpoint.Checkpoint, error) {
	if m.checkpoints == nil {
		return nil, apierror.New(apierror.NotFound, "checkpoints are not enabled")
	}
	cleaned := pathutil.Clean(apiPath)
	if _, err := m.root.Stat(relPath(cleaned)); err != nil {
		if os.IsNotExist(err) {
			return nil, apierror.NotFoundf("%s not found", cleaned)
		}
		return nil, apierror.Wrap(err, "failed to stat entry")
	}
	return m.checkpoints.List(cleaned)
}

func (m *Manager) RestoreCheckpoint(apiPath, id string) error {
	if m.checkpoints == nil {
		return apierror.New(apierror.NotFound, "checkpoints are not enabled")
	}
	cleaned := pathutil.Clean(apiPath)
	data, err := m.checkpoints.Read(cleaned, id)
	if err != nil {
		return err
	}
	if err := m.writeBytes(cleaned, data); err != nil {
		return err
	}
	log.Printf("restored %s from checkpoint %s (%s)", cleaned, id, humanize.Bytes(uint64(len(data))))
	return nil
}

func (m *Manager) DeleteCheckpoint(apiPath, id string) error {
	if m.checkpoints == nil {
		return apierror.New(apierror.NotFound, "checkpoints are not enabled")
	}
	cleaned := pathutil.Clean(apiPath)
	return m.checkpoints.Delete(cleaned, id)
}
