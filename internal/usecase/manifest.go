package usecase

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"PulseIngest/internal/domain"
	"PulseIngest/internal/ports"
)

// ManifestBuilder regenerates the manifest from every persisted item.
type ManifestBuilder struct {
	items  ports.ItemStore
	logger *slog.Logger
	now    func() time.Time
}

// NewManifestBuilder wires the item store. A nil now defaults to time.Now.
func NewManifestBuilder(items ports.ItemStore, logger *slog.Logger, now func() time.Time) *ManifestBuilder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if now == nil {
		now = time.Now
	}
	return &ManifestBuilder{items: items, logger: logger, now: now}
}

// Rebuild rescans all records, skips the ones that fail to decode and
// replaces the manifest in one write. It returns the number of items indexed.
func (b *ManifestBuilder) Rebuild(ctx context.Context) (int, error) {
	records, err := b.items.Records(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	items := make([]domain.PulseItem, 0, len(records))
	for _, rec := range records {
		item, err := decodeRecord(rec)
		if err != nil {
			b.logger.Warn("skipping unreadable record", "record", rec.Key, "error", err)
			continue
		}
		items = append(items, item)
	}

	manifest := BuildManifest(items, b.now())
	if err := b.items.WriteManifest(ctx, manifest); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}

	b.logger.Info("manifest rebuilt", "items", manifest.TotalItems, "skipped", len(records)-len(items))
	return manifest.TotalItems, nil
}

// BuildManifest orders items newest first. Equal times fall back to id order
// so the result depends only on the item set.
func BuildManifest(items []domain.PulseItem, generated time.Time) domain.Manifest {
	sorted := slices.Clone(items)
	if sorted == nil {
		sorted = []domain.PulseItem{}
	}
	slices.SortStableFunc(sorted, func(a, b domain.PulseItem) int {
		if c := b.EffectiveTime().Compare(a.EffectiveTime()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return domain.Manifest{
		Generated:  generated.UTC(),
		TotalItems: len(sorted),
		Items:      sorted,
	}
}

func decodeRecord(rec domain.StoredRecord) (domain.PulseItem, error) {
	if rec.Err != nil {
		return domain.PulseItem{}, rec.Err
	}

	var item domain.PulseItem
	if err := json.Unmarshal(rec.Data, &item); err != nil {
		return domain.PulseItem{}, fmt.Errorf("decode: %w", err)
	}
	if item.ID == "" {
		return domain.PulseItem{}, fmt.Errorf("record has no id")
	}
	return item, nil
}
