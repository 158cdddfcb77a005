package files

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/noteskeeper/internal/errs"
)

func seed(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "alice", "12")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello attachment\n"), 0o600))
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.dat"), png, 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("top secret"), 0o600))
	return root
}

func TestOpen_ServesAndSniffs(t *testing.T) {
	t.Parallel()

	s := NewStore(seed(t))

	f, err := s.Open("alice", "12", "notes.txt")
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, "notes.txt", f.Name)
	require.Equal(t, int64(17), f.Size)
	require.True(t, strings.HasPrefix(f.ContentType, "text/plain"), f.ContentType)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello attachment\n", string(body), "reader must be rewound after sniffing")

	img, err := s.Open("alice", "12", "pic.dat")
	require.NoError(t, err)
	defer img.Close()
	require.Equal(t, "image/png", img.ContentType)
}

func TestOpen_MissingIsNotFound(t *testing.T) {
	t.Parallel()

	s := NewStore(seed(t))
	for _, c := range [][3]string{
		{"alice", "12", "nope.txt"},
		{"bob", "12", "notes.txt"},
		{"alice", "13", "notes.txt"},
		{"alice", "12", "sub"},
	} {
		_, err := s.Open(c[0], c[1], c[2])
		require.ErrorIs(t, err, errs.ErrNotFound, "%v", c)
	}
}

func TestOpen_TraversalRejected(t *testing.T) {
	t.Parallel()

	s := NewStore(seed(t))
	for _, c := range [][3]string{
		{"alice", "12", "../../secret.txt"},
		{"alice", "..", "secret.txt"},
		{"..", "..", "secret.txt"},
		{"alice/12", ".", "notes.txt"},
		{"alice", "12", `..\..\secret.txt`},
		{"alice", "12", ""},
		{"", "12", "notes.txt"},
	} {
		_, err := s.Open(c[0], c[1], c[2])
		require.ErrorIs(t, err, errs.ErrNotFound, "%v", c)
	}
}

func TestOpen_SymlinkCannotEscapeRoot(t *testing.T) {
	t.Parallel()

	root := seed(t)
	outside := filepath.Join(t.TempDir(), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("outside"), 0o600))
	if err := os.Symlink(outside, filepath.Join(root, "alice", "12", "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	// absolute link targets are re-rooted, so the outside file is unreachable
	_, err := NewStore(root).Open("alice", "12", "link.txt")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
