package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var (
	// ErrDecode means the uploaded bytes are not a decodable image.
	ErrDecode = errors.New("not a valid image")
	// ErrEmptyName means nothing usable is left of the client filename.
	ErrEmptyName = errors.New("empty filename after sanitization")
)

// StagedImage is an uploaded file parked in the staging directory between
// upload and confirm. Name is the sanitized client filename; only its
// extension matters for addressing, the id is the real key.
type StagedImage struct {
	ID   string
	Ext  string
	Name string
	Path string
}

// StagingStore holds uploads under {dir}/{uuid}{ext} until they are confirmed
// or discarded.
type StagingStore struct {
	dir string
}

func NewStagingStore(dir string) *StagingStore {
	return &StagingStore{dir: dir}
}

// Stage writes the upload to the staging directory and verifies it decodes as
// an image. On decode failure the temp file is removed before returning.
func (s *StagingStore) Stage(r io.Reader, originalName string) (StagedImage, error) {
	name := sanitizeFilename(originalName)
	if name == "" {
		return StagedImage{}, ErrEmptyName
	}
	ext := filepath.Ext(name)
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+ext)

	f, err := os.Create(path)
	if err != nil {
		return StagedImage{}, fmt.Errorf("stage %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return StagedImage{}, fmt.Errorf("stage %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return StagedImage{}, fmt.Errorf("stage %s: %w", name, err)
	}
	if _, err := imaging.Open(path); err != nil {
		_ = os.Remove(path)
		return StagedImage{}, fmt.Errorf("%s: %w", name, ErrDecode)
	}
	return StagedImage{ID: id, Ext: ext, Name: name, Path: path}, nil
}

// Lookup resolves a staged file by id+ext. Returns false when the file is
// absent or the tokens would escape the staging directory.
func (s *StagingStore) Lookup(id, ext string) (string, bool) {
	if !safeToken(id) {
		return "", false
	}
	if ext != "" && (!strings.HasPrefix(ext, ".") || !safeToken(ext[1:])) {
		return "", false
	}
	path := filepath.Join(s.dir, id+ext)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Discard removes a staged file. Removing an already-absent file is a no-op.
func (s *StagingStore) Discard(id, ext string) error {
	path, ok := s.Lookup(id, ext)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// sanitizeFilename strips path components and keeps only filesystem-safe
// runes. Returns "" when nothing usable remains.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
	if strings.Trim(name, "._-") == "" {
		return ""
	}
	return name
}

// safeToken accepts the uuid/extension alphabet only; anything with path
// separators or dots beyond the ext marker is rejected.
func safeToken(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
