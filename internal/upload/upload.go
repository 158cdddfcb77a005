// Package upload spools multipart file uploads into size-checked temp files for the backend.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/model"
	"github.com/and161185/noteskeeper/internal/sanitize"
)

// Spooler writes uploads into temp files no larger than MaxSize.
type Spooler struct {
	maxSize int64
	dir     string
}

// NewSpooler constructs a Spooler; an empty dir means os.TempDir.
func NewSpooler(maxSize int64, dir string) *Spooler {
	return &Spooler{maxSize: maxSize, dir: dir}
}

// MaxSize returns the per-file limit in bytes.
func (s *Spooler) MaxSize() int64 { return s.maxSize }

// Spool copies every file to a temp file. Files of exactly MaxSize bytes are accepted; larger
// files fail the whole batch regardless of their type. The returned cleanup removes every temp
// file and must be deferred by the caller; on error nothing is left behind.
func (s *Spooler) Spool(headers []*multipart.FileHeader) ([]model.Upload, func(), error) {
	var out []model.Upload
	cleanup := func() {
		for _, u := range out {
			_ = os.Remove(u.TempPath)
		}
	}
	for _, fh := range headers {
		u, err := s.spoolOne(fh)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		out = append(out, u)
	}
	return out, cleanup, nil
}

func (s *Spooler) spoolOne(fh *multipart.FileHeader) (model.Upload, error) {
	name := CleanName(fh.Filename)
	if name == "" {
		return model.Upload{}, errs.Invalid("Invalid file name")
	}
	if fh.Size > s.maxSize {
		return model.Upload{}, s.tooLarge(name)
	}

	src, err := fh.Open()
	if err != nil {
		return model.Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.dir, "nk-upload-*")
	if err != nil {
		return model.Upload{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(dst, io.LimitReader(src, s.maxSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxSize {
		err = s.tooLarge(name)
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		var ve *errs.ValidationError
		if errors.As(err, &ve) {
			return model.Upload{}, err
		}
		return model.Upload{}, fmt.Errorf("spool upload: %w", err)
	}
	return model.Upload{TempPath: dst.Name(), Name: name, Size: n}, nil
}

func (s *Spooler) tooLarge(name string) error {
	return errs.Invalid(fmt.Sprintf("File %s exceeds size limit of %s", name, humanSize(s.maxSize)))
}

// CleanName reduces a client-supplied file name to a sanitized base name usable in `tmp:name` pairs.
func CleanName(name string) string {
	name = sanitize.String(name)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', ':', '/', 0:
			return '_'
		}
		return r
	}, name)
}

func humanSize(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
