package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Asset kinds accepted by the store
const (
	KindLogo      = "logo"
	KindSignature = "signature"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
)

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Store saves member assets under Dir/<kind>/<uuid><ext>. Returned paths
// are relative to Dir and use forward slashes so they can be served as URLs.
type Store struct {
	Dir      string
	MaxBytes int64
}

// NewStore creates the upload directory tree
func NewStore(dir string, maxBytes int64) (*Store, error) {
	for _, kind := range []string{KindLogo, KindSignature} {
		if err := os.MkdirAll(filepath.Join(dir, kind), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}, nil
}

// Save copies fh into the store and returns its relative path
func (s *Store) Save(kind string, fh *multipart.FileHeader) (string, error) {
	if kind != KindLogo && kind != KindSignature {
		return "", fmt.Errorf("unknown asset kind %q", kind)
	}
	if fh.Size == 0 {
		return "", ErrEmptyFile
	}
	if s.MaxBytes > 0 && fh.Size > s.MaxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, fh.Filename, fh.Size)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	rel := path.Join(kind, uuid.NewString()+ext)
	dst, err := os.OpenFile(filepath.Join(s.Dir, filepath.FromSlash(rel)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return rel, nil
}

// Remove deletes a previously saved asset. Paths outside the store are ignored.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	clean := path.Clean("/" + rel)[1:]
	if clean == "" || clean != rel {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
