package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"PulseIngest/internal/domain"
	"PulseIngest/internal/ports"
)

// ErrItemExists is returned when a record with the same slug is already stored.
var ErrItemExists = errors.New("pulse item already exists")

// FileItemStore keeps one JSON file per pulse item plus a manifest file.
type FileItemStore struct {
	itemsDir     string
	manifestPath string
}

var _ ports.ItemStore = (*FileItemStore)(nil)

// NewFileItemStore stores items under itemsDir and the manifest at manifestPath.
func NewFileItemStore(itemsDir, manifestPath string) *FileItemStore {
	return &FileItemStore{itemsDir: itemsDir, manifestPath: manifestPath}
}

// Save writes item as <id>.json. Existing records are never overwritten.
func (s *FileItemStore) Save(ctx context.Context, item domain.PulseItem) error {
	if item.ID == "" || strings.ContainsAny(item.ID, `/\`) {
		return fmt.Errorf("invalid item id %q", item.ID)
	}

	path := filepath.Join(s.itemsDir, item.ID+".json")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("save %s: %w", item.ID, ErrItemExists)
	}

	payload, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", item.ID, err)
	}
	if err := writeFileAtomic(path, append(payload, '\n')); err != nil {
		return fmt.Errorf("save %s: %w", item.ID, err)
	}
	return nil
}

// Records returns the raw bytes of every *.json record, ordered by file name.
// Unreadable files are reported through StoredRecord.Err instead of failing the scan.
func (s *FileItemStore) Records(ctx context.Context) ([]domain.StoredRecord, error) {
	entries, err := os.ReadDir(s.itemsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	records := make([]domain.StoredRecord, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.itemsDir, name))
		records = append(records, domain.StoredRecord{
			Key:  strings.TrimSuffix(name, ".json"),
			Data: data,
			Err:  err,
		})
	}
	return records, nil
}

// WriteManifest replaces the manifest in one rename; readers see the old or the new file, never a mix.
func (s *FileItemStore) WriteManifest(ctx context.Context, manifest domain.Manifest) error {
	if manifest.Items == nil {
		manifest.Items = []domain.PulseItem{}
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeFileAtomic(s.manifestPath, append(payload, '\n')); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
