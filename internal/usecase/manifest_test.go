package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"PulseIngest/internal/domain"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestBuildManifestOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	items := []domain.PulseItem{
		{ID: "old", Timestamp: "2026-01-01T10:00:00Z"},
		{ID: "dated-only", Date: "March 3, 2026"},
		{ID: "newest", Timestamp: "2026-06-01T10:00:00Z"},
		{ID: "undated"},
		{ID: "b-tie", Timestamp: "2026-02-02T00:00:00Z"},
		{ID: "a-tie", Timestamp: "2026-02-02T00:00:00Z"},
	}

	generated := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	manifest := BuildManifest(items, generated)

	var got []string
	for _, it := range manifest.Items {
		got = append(got, it.ID)
	}
	want := []string{"newest", "dated-only", "a-tie", "b-tie", "old", "undated"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v", got)
	}
	if manifest.TotalItems != len(items) || manifest.Generated.Location() != time.UTC {
		t.Fatalf("unexpected header %+v", manifest)
	}
	if items[0].ID != "old" {
		t.Fatal("input slice must not be reordered")
	}
}

func TestBuildManifestEmpty(t *testing.T) {
	t.Parallel()

	manifest := BuildManifest(nil, time.Now())
	if manifest.Items == nil || manifest.TotalItems != 0 {
		t.Fatalf("expected empty non-nil items, got %+v", manifest)
	}
}

func TestRebuildIsPureFunctionOfRecords(t *testing.T) {
	t.Parallel()

	store := newMemItems()
	store.put("a", mustJSON(t, domain.PulseItem{ID: "a", Timestamp: "2026-05-01T00:00:00Z"}))
	store.put("b", mustJSON(t, domain.PulseItem{ID: "b", Date: "May 2, 2026"}))

	builder := NewManifestBuilder(store, nil, stepClock(runStart))

	first, err := builder.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild error: %v", err)
	}
	firstItems := store.manifest.Items

	second, err := builder.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild error: %v", err)
	}

	if first != 2 || second != 2 || store.manifest.TotalItems != 2 {
		t.Fatalf("unexpected totals %d %d", first, second)
	}
	if !reflect.DeepEqual(firstItems, store.manifest.Items) {
		t.Fatalf("items differ between rebuilds:\n%v\n%v", firstItems, store.manifest.Items)
	}
}

func TestRebuildSkipsCorruptRecords(t *testing.T) {
	t.Parallel()

	store := newMemItems()
	for _, id := range []string{"one", "two", "three"} {
		store.put(id, mustJSON(t, domain.PulseItem{ID: id, Timestamp: "2026-04-01T00:00:00Z"}))
	}
	store.put("broken", []byte(`{"id": "broken", "title": `))
	store.put("anonymous", []byte(`{"title":"no id"}`))

	total, err := NewManifestBuilder(store, nil, nil).Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild error: %v", err)
	}
	if total != 3 || store.manifest.TotalItems != 3 {
		t.Fatalf("expected 3 valid items, got %d", total)
	}
}

type erroringItems struct {
	*memItems
	recordsErr error
	writeErr   error
}

func (e erroringItems) Records(ctx context.Context) ([]domain.StoredRecord, error) {
	if e.recordsErr != nil {
		return nil, e.recordsErr
	}
	recs, err := e.memItems.Records(ctx)
	return append(recs, domain.StoredRecord{Key: "unreadable", Err: errors.New("permission denied")}), err
}

func (e erroringItems) WriteManifest(ctx context.Context, m domain.Manifest) error {
	if e.writeErr != nil {
		return e.writeErr
	}
	return e.memItems.WriteManifest(ctx, m)
}

func TestRebuildErrors(t *testing.T) {
	t.Parallel()

	base := newMemItems()
	base.put("a", mustJSON(t, domain.PulseItem{ID: "a"}))

	total, err := NewManifestBuilder(erroringItems{memItems: base}, nil, nil).Rebuild(context.Background())
	if err != nil || total != 1 {
		t.Fatalf("unreadable record must be skipped: total=%d err=%v", total, err)
	}

	if _, err := NewManifestBuilder(erroringItems{memItems: base, recordsErr: errors.New("io")}, nil, nil).Rebuild(context.Background()); err == nil {
		t.Fatal("expected listing error")
	}
	if _, err := NewManifestBuilder(erroringItems{memItems: base, writeErr: errors.New("io")}, nil, nil).Rebuild(context.Background()); err == nil {
		t.Fatal("expected write error")
	}
}
