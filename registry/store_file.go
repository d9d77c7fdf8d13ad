package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	fileStoreVersionV1 = "1"
	defaultStoreDir    = ".toolweave"
	defaultStoreFile   = "tools.json"
)

var (
	errEmptyRef       = errors.New("registry: registration ref is required")
	errEmptyStorePath = errors.New("registry: file store path is empty")
)

type fileStoreDocument struct {
	Version string         `json:"version"`
	Tools   []Registration `json:"tools"`
}

// FileStore persists registrations in a local JSON file.
// This store is intended for CLI mode.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file-backed registration store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultStorePath returns the default registration file path for CLI mode.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("registry: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultStoreDir, defaultStoreFile), nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// List returns all registrations in deterministic (ref-sorted) order.
func (s *FileStore) List(ctx context.Context) ([]Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("registry: file store is nil")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load()
}

// Get returns a registration by ref.
func (s *FileStore) Get(ctx context.Context, ref string) (Registration, bool, error) {
	regs, err := s.List(ctx)
	if err != nil {
		return Registration{}, false, err
	}

	for _, reg := range regs {
		if reg.Descriptor.Ref == ref {
			return reg, true, nil
		}
	}
	return Registration{}, false, nil
}

// Upsert inserts or updates a registration by ref.
func (s *FileStore) Upsert(ctx context.Context, reg Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("registry: file store is nil")
	}
	if strings.TrimSpace(reg.Descriptor.Ref) == "" {
		return errEmptyRef
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.load()
	if err != nil {
		return err
	}

	index := -1
	for i := range regs {
		if regs[i].Descriptor.Ref == reg.Descriptor.Ref {
			index = i
			break
		}
	}
	if index >= 0 {
		regs[index] = reg
	} else {
		regs = append(regs, reg)
	}

	return s.save(regs)
}

// Delete removes a registration by ref. Deleting a missing ref is a no-op.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("registry: file store is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.load()
	if err != nil {
		return err
	}

	filtered := make([]Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.Descriptor.Ref != ref {
			filtered = append(filtered, reg)
		}
	}
	return s.save(filtered)
}

func (s *FileStore) load() ([]Registration, error) {
	if strings.TrimSpace(s.path) == "" {
		return nil, errEmptyStorePath
	}

	// #nosec G304 -- path is configured by caller and constrained to local filesystem usage.
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Registration{}, nil
		}
		return nil, fmt.Errorf("registry: read registrations: %w", err)
	}
	if len(data) == 0 {
		return []Registration{}, nil
	}

	var doc fileStoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: decode registrations: %w", err)
	}
	regs := doc.Tools
	if regs == nil {
		regs = []Registration{}
	}
	sortRegistrations(regs)
	return regs, nil
}

func (s *FileStore) save(regs []Registration) error {
	if strings.TrimSpace(s.path) == "" {
		return errEmptyStorePath
	}

	sortRegistrations(regs)
	doc := fileStoreDocument{
		Version: fileStoreVersionV1,
		Tools:   regs,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode registrations: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("registry: create store dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("registry: write temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("registry: replace store file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
