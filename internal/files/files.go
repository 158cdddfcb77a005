// Package files resolves attachments written by the backend under root/username/note_id/file_name.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/gabriel-vasile/mimetype"

	"github.com/and161185/noteskeeper/internal/errs"
)

// Store serves attachments read-only from a root directory.
type Store struct {
	root string
}

// NewStore constructs a Store rooted at root.
func NewStore(root string) *Store { return &Store{root: root} }

// File is an opened attachment positioned at its start.
type File struct {
	*os.File
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Open resolves and opens an attachment. Components holding separators or dot segments are
// rejected, and the joined path never escapes root even through symlinks.
// Missing files, directories and rejected components all yield errs.ErrNotFound.
func (s *Store) Open(username, noteID, fileName string) (*File, error) {
	for _, part := range []string{username, noteID, fileName} {
		if !validComponent(part) {
			return nil, errs.ErrNotFound
		}
	}
	path, err := securejoin.SecureJoin(s.root, filepath.Join(username, noteID, fileName))
	if err != nil {
		return nil, fmt.Errorf("resolve attachment: %w", err)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, errs.ErrNotFound
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sniff content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &File{
		File:        f,
		Name:        st.Name(),
		Size:        st.Size(),
		ModTime:     st.ModTime(),
		ContentType: mt.String(),
	}, nil
}

func validComponent(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}
