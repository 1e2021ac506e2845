package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"bv01/models"
)

// CatalogStore is the flat-file brand-visual catalog: a single pretty-printed
// JSON array, loaded and rewritten whole on every append. Appends are
// serialized behind a mutex so concurrent save requests cannot lose updates.
type CatalogStore struct {
	mu   sync.Mutex
	path string
}

func NewCatalogStore(path string) *CatalogStore {
	return &CatalogStore{path: path}
}

// Load returns all catalog entries in append order. A missing file is an
// empty catalog, not an error.
func (s *CatalogStore) Load() ([]models.BrandVisual, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CatalogStore) load() ([]models.BrandVisual, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.BrandVisual{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	entries := []models.BrandVisual{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return entries, nil
}

// Append adds one entry and persists the whole catalog. The new file is
// written beside the old one and renamed into place so readers never see a
// half-written array.
func (s *CatalogStore) Append(entry models.BrandVisual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
