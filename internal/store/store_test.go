package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/progress"
)

func setupTestStore(t *testing.T) *Manager {
	t.Helper()

	m, err := OpenPath(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestReadProgress_Empty(t *testing.T) {
	m := setupTestStore(t)

	snap, err := m.ReadProgress(context.Background(), "usr_1", "bk_1")
	if err != nil {
		t.Fatalf("ReadProgress failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot for never-played item, got %+v", snap)
	}
}

func TestWriteAndReadProgress(t *testing.T) {
	m := setupTestStore(t)
	ctx := context.Background()

	snap := progress.Snapshot{
		UserID:       "usr_1",
		ItemID:       "bk_1",
		ChapterIndex: 3,
		Position:     95 * time.Second,
		Percent:      0.42,
		DeviceID:     "dev_abc",
		UpdatedAt:    time.UnixMilli(1_700_000_000_000),
	}
	if err := m.WriteProgress(ctx, snap); err != nil {
		t.Fatalf("WriteProgress failed: %v", err)
	}

	got, err := m.ReadProgress(ctx, "usr_1", "bk_1")
	if err != nil {
		t.Fatalf("ReadProgress failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if got.ChapterIndex != 3 || got.Position != 95*time.Second || got.Percent != 0.42 {
		t.Errorf("got %+v, want chapter 3 at 95s (42%%)", got)
	}
	if got.DeviceID != "dev_abc" {
		t.Errorf("DeviceID = %q, want dev_abc", got.DeviceID)
	}
	if !got.UpdatedAt.Equal(snap.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, snap.UpdatedAt)
	}
}

func TestWriteProgress_UpsertReplacesRow(t *testing.T) {
	m := setupTestStore(t)
	ctx := context.Background()

	first := progress.Snapshot{
		UserID: "usr_1", ItemID: "bk_1",
		ChapterIndex: 0, Position: 10 * time.Second, Percent: 0.01,
		UpdatedAt: time.UnixMilli(1000),
	}
	second := first
	second.ChapterIndex = 2
	second.Position = 30 * time.Second
	second.Percent = 0.5
	second.UpdatedAt = time.UnixMilli(2000)

	if err := m.WriteProgress(ctx, first); err != nil {
		t.Fatalf("first WriteProgress failed: %v", err)
	}
	if err := m.WriteProgress(ctx, second); err != nil {
		t.Fatalf("second WriteProgress failed: %v", err)
	}

	got, err := m.ReadProgress(ctx, "usr_1", "bk_1")
	if err != nil {
		t.Fatalf("ReadProgress failed: %v", err)
	}
	if got.ChapterIndex != 2 || got.Position != 30*time.Second {
		t.Errorf("got %+v, want the second write to win", got)
	}

	// Same key, one row.
	snaps, err := m.Recent(ctx, "usr_1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("Recent returned %d rows, want 1", len(snaps))
	}
}

func TestWriteProgress_Idempotent(t *testing.T) {
	m := setupTestStore(t)
	ctx := context.Background()

	snap := progress.Snapshot{
		UserID: "usr_1", ItemID: "bk_1",
		ChapterIndex: 1, Position: time.Minute, Percent: 0.2,
		UpdatedAt: time.UnixMilli(5000),
	}
	if err := m.WriteProgress(ctx, snap); err != nil {
		t.Fatalf("WriteProgress failed: %v", err)
	}
	if err := m.WriteProgress(ctx, snap); err != nil {
		t.Fatalf("repeated WriteProgress failed: %v", err)
	}

	got, err := m.ReadProgress(ctx, "usr_1", "bk_1")
	if err != nil {
		t.Fatalf("ReadProgress failed: %v", err)
	}
	if got.Position != time.Minute || !got.UpdatedAt.Equal(snap.UpdatedAt) {
		t.Errorf("repeated write changed the row: %+v", got)
	}
}

func TestRecent_OrderAndScope(t *testing.T) {
	m := setupTestStore(t)
	ctx := context.Background()

	for i, itemID := range []string{"bk_a", "bk_b", "bk_c"} {
		snap := progress.Snapshot{
			UserID: "usr_1", ItemID: itemID,
			Position:  time.Duration(i) * time.Minute,
			UpdatedAt: time.UnixMilli(int64(1000 * (i + 1))),
		}
		if err := m.WriteProgress(ctx, snap); err != nil {
			t.Fatalf("WriteProgress(%s) failed: %v", itemID, err)
		}
	}
	// A different user's row must not leak in.
	other := progress.Snapshot{UserID: "usr_2", ItemID: "bk_z", UpdatedAt: time.UnixMilli(9000)}
	if err := m.WriteProgress(ctx, other); err != nil {
		t.Fatalf("WriteProgress(other user) failed: %v", err)
	}

	snaps, err := m.Recent(ctx, "usr_1", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Recent returned %d rows, want 2", len(snaps))
	}
	if snaps[0].ItemID != "bk_c" || snaps[1].ItemID != "bk_b" {
		t.Errorf("Recent order = [%s %s], want [bk_c bk_b]", snaps[0].ItemID, snaps[1].ItemID)
	}
}

func TestOpenPath_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	ctx := context.Background()

	m, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	snap := progress.Snapshot{UserID: "usr_1", ItemID: "bk_1", Percent: 0.7, UpdatedAt: time.Now()}
	if err := m.WriteProgress(ctx, snap); err != nil {
		t.Fatalf("WriteProgress failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	m2, err := OpenPath(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer m2.Close()
	got, err := m2.ReadProgress(ctx, "usr_1", "bk_1")
	if err != nil {
		t.Fatalf("ReadProgress after reopen failed: %v", err)
	}
	if got == nil || got.Percent != 0.7 {
		t.Errorf("got %+v, want persisted row", got)
	}
}
