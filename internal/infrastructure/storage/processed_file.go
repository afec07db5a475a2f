package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"PulseIngest/internal/ports"
)

// FileProcessedStore is the processed-URL set as an append-only text file:
// one URL per line, blank lines and lines starting with '#' ignored.
type FileProcessedStore struct {
	path string
	mu   sync.Mutex
}

var _ ports.ProcessedStore = (*FileProcessedStore)(nil)

// NewFileProcessedStore stores the set at path. The file is created on first Mark.
func NewFileProcessedStore(path string) *FileProcessedStore {
	return &FileProcessedStore{path: path}
}

// Path returns the file backing this store.
func (s *FileProcessedStore) Path() string {
	return s.path
}

// Load reads the whole set. A missing file is an empty set.
func (s *FileProcessedStore) Load(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]struct{})

	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open processed set: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read processed set: %w", err)
	}
	return result, nil
}

// Mark appends url and syncs before returning.
func (s *FileProcessedStore) Mark(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("mark processed: empty url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open processed set: %w", err)
	}
	if _, err := file.WriteString(url + "\n"); err != nil {
		_ = file.Close()
		return fmt.Errorf("append processed url: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync processed set: %w", err)
	}
	return file.Close()
}
