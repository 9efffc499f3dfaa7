package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sicko7947/fraudflow"
)

// MarkdownStore keeps records in memory and re-renders the markdown document
// to disk after every write
type MarkdownStore struct {
	*MemoryStore
	path string
}

// NewMarkdownStore creates the output directory and returns a store writing
// to dir/filename
func NewMarkdownStore(dir, filename string) (*MarkdownStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &MarkdownStore{
		MemoryStore: NewMemoryStore(),
		path:        filepath.Join(dir, filename),
	}, nil
}

func (s *MarkdownStore) Clear(ctx context.Context) error {
	if err := s.MemoryStore.Clear(ctx); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", s.path, err)
	}
	return nil
}

func (s *MarkdownStore) AppendStep(ctx context.Context, rec fraudflow.StepRecord) error {
	if err := s.MemoryStore.AppendStep(ctx, rec); err != nil {
		return err
	}
	return s.write()
}

func (s *MarkdownStore) SetFinalFunction(ctx context.Context, sql, name string) error {
	if err := s.MemoryStore.SetFinalFunction(ctx, sql, name); err != nil {
		return err
	}
	return s.write()
}

func (s *MarkdownStore) Location() string {
	return s.path
}

// Document reads the rendered document back from disk
func (s *MarkdownStore) Document() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return string(data), nil
}

// write renders to a temp file and renames it over the document
func (s *MarkdownStore) write() error {
	steps, final := s.snapshot()
	doc := Render(steps, final, s.now().In(time.UTC))

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sqlcode-*.md")
	if err != nil {
		return fmt.Errorf("failed to create temp document: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
