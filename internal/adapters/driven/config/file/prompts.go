package file

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

const promptExt = ".txt"

//go:embed defaults/*
var defaults embed.FS

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves chat prompts from editable files in a directory.
// The directory is seeded from the embedded defaults on first Load, and a
// missing or unreadable file falls back to its default.
type PromptStore struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string

	seedOnce sync.Once
	seedErr  error
}

// NewPromptStore does no I/O. An empty dir means ~/.papercache/prompts.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		dir = filepath.Join(domain.DefaultDataDir(), "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the named prompt template.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.read(name)
	if err != nil {
		fallback, found := defaultPrompt(name)
		if !found {
			return "", fmt.Errorf("load prompt %q: %w", name, err)
		}
		return fallback, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload drops cached prompts so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Watch reloads prompts whenever a prompt file changes and then calls onChange.
func (s *PromptStore) Watch(ctx context.Context, onChange func()) error {
	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		return s.seedErr
	}
	return watchDir(ctx, s.dir, "prompts",
		func(name string) bool { return strings.HasSuffix(name, promptExt) },
		func() error { s.Reload(); return nil },
		onChange)
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) read(name string) (string, error) {
	if s.seedErr != nil {
		return "", s.seedErr
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name+promptExt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// seed copies every embedded default that is not already on disk.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	entries, err := defaults.ReadDir("defaults")
	if err != nil {
		s.seedErr = err
		return
	}
	for _, entry := range entries {
		target := filepath.Join(s.dir, entry.Name())
		if _, err := os.Stat(target); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		data, err := defaults.ReadFile(path.Join("defaults", entry.Name()))
		if err != nil {
			s.seedErr = err
			return
		}
		if err := os.WriteFile(target, data, 0600); err != nil {
			s.seedErr = fmt.Errorf("write default %s: %w", entry.Name(), err)
			return
		}
	}
}

// defaultPrompt returns the embedded template for name.
func defaultPrompt(name string) (string, bool) {
	data, err := defaults.ReadFile(path.Join("defaults", name+promptExt))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
