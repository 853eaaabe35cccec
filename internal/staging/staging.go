package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/SuperSection/fileshare/transfer"
	"github.com/google/uuid"
)

// DirName is the directory created under os.TempDir when no root is configured.
const DirName = "fileshare-uploads"

const maxStoredNameBytes = 120

var (
	// ErrSizeMismatch is returned when the body length differs from the declared size.
	ErrSizeMismatch = errors.New("upload size does not match declared size")
	// ErrSenderFailed is returned when reading the upload body fails.
	ErrSenderFailed = errors.New("upload body read failed")
	// ErrDiskFailed is returned when the staged file cannot be written.
	ErrDiskFailed = errors.New("staging write failed")
)

// Area is an upload directory.
type Area struct {
	root      string
	chunkSize int
	newID     func() string
}

// New prepares root (or os.TempDir()/fileshare-uploads when empty) with owner-only
// permissions.
func New(root string, chunkSize int) (*Area, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), DirName)
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiskFailed, err)
	}
	return &Area{
		root:      root,
		chunkSize: chunkSize,
		newID:     uuid.NewString,
	}, nil
}

// Root returns the directory staged files are written to.
func (a *Area) Root() string {
	return a.root
}

// Stage copies exactly size bytes from body into a new file and returns it rewound for
// reading. Any failure removes the partial file; a body longer or shorter than size
// yields [ErrSizeMismatch].
func (a *Area) Stage(ctx context.Context, filename string, size int64, body io.Reader) (*File, error) {
	if size < 0 {
		return nil, ErrSizeMismatch
	}

	path := filepath.Join(a.root, a.newID()+"_"+storedName(filename))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiskFailed, err)
	}

	fail := func(err error) (*File, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	_, err = transfer.Copy(ctx, f, body, size, transfer.Options{ChunkSize: a.chunkSize})
	switch {
	case err == nil:
	case errors.Is(err, transfer.ErrShortRead):
		return fail(ErrSizeMismatch)
	case errors.Is(err, transfer.ErrSourceFailed):
		return fail(fmt.Errorf("%w: %v", ErrSenderFailed, err))
	case errors.Is(err, transfer.ErrReceiverGone):
		return fail(fmt.Errorf("%w: %v", ErrDiskFailed, err))
	default:
		return fail(err)
	}

	// trailing bytes beyond the declared size
	var probe [1]byte
	if n, rerr := io.ReadFull(body, probe[:]); n > 0 {
		return fail(ErrSizeMismatch)
	} else if rerr != nil && !errors.Is(rerr, io.EOF) {
		return fail(fmt.Errorf("%w: %v", ErrSenderFailed, rerr))
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrDiskFailed, err))
	}

	return &File{f: f, path: path, size: size}, nil
}

// Bytes stages an in-memory payload. Used by tools and tests.
func (a *Area) Bytes(ctx context.Context, filename string, data []byte) (*File, error) {
	return a.Stage(ctx, filename, int64(len(data)), bytes.NewReader(data))
}

func storedName(filename string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, filepath.Base(filename))
	for len(name) > maxStoredNameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	if name == "" || name == "." || name == ".." {
		name = "unnamed-file"
	}
	return name
}

// File is a staged upload. It satisfies the session payload contract.
type File struct {
	f    *os.File
	path string
	size int64

	once       sync.Once
	releaseErr error
}

func (s *File) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

// Path returns the on-disk location.
func (s *File) Path() string {
	return s.path
}

// Size returns the staged length.
func (s *File) Size() int64 {
	return s.size
}

// Release closes and removes the staged file. Later calls return the first result.
func (s *File) Release() error {
	s.once.Do(func() {
		cerr := s.f.Close()
		rerr := os.Remove(s.path)
		if rerr != nil && errors.Is(rerr, os.ErrNotExist) {
			rerr = nil
		}
		s.releaseErr = errors.Join(cerr, rerr)
	})
	return s.releaseErr
}
