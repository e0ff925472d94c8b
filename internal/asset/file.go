package asset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/persistorai/assetmig/internal/document"
)

// File is one asset awaiting migration. Once its content has been changed the
// in-memory override supersedes the file on disk for every later read. File
// is not safe for concurrent use; each migration owns its file.
type File struct {
	// OriginalPath is where the asset was found.
	OriginalPath string
	// FilePath is where the asset lives now; it differs after a rename.
	FilePath string
	// Deleted marks assets removed during migration.
	Deleted bool

	override []byte
	dirty    bool
}

// NewFile returns a handle for an asset on disk.
func NewFile(path string) *File {
	return &File{OriginalPath: path, FilePath: path}
}

// NewMemoryFile returns a handle whose content is held in memory.
func NewMemoryFile(path string, content []byte) *File {
	return &File{OriginalPath: path, FilePath: path, override: content}
}

// Ext returns the lower-cased extension of FilePath, including the dot.
func (f *File) Ext() string {
	return strings.ToLower(filepath.Ext(f.FilePath))
}

// Open returns a reader over the current content.
func (f *File) Open() (io.ReadCloser, error) {
	if f.override != nil {
		return io.NopCloser(bytes.NewReader(f.override)), nil
	}

	file, err := os.Open(f.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening asset %s: %w", f.FilePath, err)
	}

	return file, nil
}

// Content returns the current content.
func (f *File) Content() ([]byte, error) {
	if f.override != nil {
		return f.override, nil
	}

	data, err := os.ReadFile(f.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", f.FilePath, err)
	}

	return data, nil
}

// SetContent replaces the current content.
func (f *File) SetContent(content []byte) {
	f.override = content
	f.dirty = true
}

// Modified reports whether the content changed since the handle was created.
func (f *File) Modified() bool { return f.dirty }

// Save writes changed content to FilePath. Unchanged files are left alone.
func (f *File) Save() error {
	if !f.dirty {
		return nil
	}

	if err := os.WriteFile(f.FilePath, f.override, 0o644); err != nil {
		return fmt.Errorf("saving asset %s: %w", f.FilePath, err)
	}

	f.dirty = false

	return nil
}

// Edit parses the current content into a mutable document. Changes become
// visible through the file only after Editor.Commit.
func (f *File) Edit() (*Editor, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := document.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing asset %s: %w", f.FilePath, err)
	}

	return &Editor{file: f, doc: doc}, nil
}

// Editor is a scoped mutable view over the document of one File.
type Editor struct {
	file *File
	doc  *document.Document
}

// Document returns the parsed document.
func (e *Editor) Document() *document.Document { return e.doc }

// Root returns the root node of the document.
func (e *Editor) Root() *document.Node { return e.doc.Root() }

// Commit serializes the document back into the file's in-memory content.
func (e *Editor) Commit() error {
	data, err := e.doc.Bytes()
	if err != nil {
		return fmt.Errorf("serializing asset %s: %w", e.file.FilePath, err)
	}

	e.file.SetContent(data)

	return nil
}
