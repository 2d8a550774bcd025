// Package store is the sqlite-backed local progress cache. It keeps the
// last known position per (user, item) so playback resumes offline and
// survives restarts; the remote row store stays the source of truth when
// reachable.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/soundleafapp/soundleaf-playback/internal/db"
	"github.com/soundleafapp/soundleaf-playback/internal/progress"
)

const (
	appName    = "soundleaf"
	dbFileName = "progress.db"
)

// Manager owns the local progress database.
type Manager struct {
	db *sql.DB
}

// Open opens (creating if needed) the progress database at the default
// XDG data path.
func Open() (*Manager, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the progress database at an explicit path. Used by tests
// and by config overrides.
func OpenPath(dbPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Manager{db: sqlDB}, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// DB exposes the underlying handle for inspection tooling.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// WriteProgress upserts one progress row keyed by (user, item). Writing
// the same snapshot twice leaves the row unchanged.
func (m *Manager) WriteProgress(ctx context.Context, snap progress.Snapshot) error {
	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO progress (user_id, item_id, chapter_index, position_ms, percent, device_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, item_id) DO UPDATE SET
				chapter_index = excluded.chapter_index,
				position_ms = excluded.position_ms,
				percent = excluded.percent,
				device_id = excluded.device_id,
				updated_at = excluded.updated_at
		`, snap.UserID, snap.ItemID, snap.ChapterIndex,
			snap.Position.Milliseconds(), snap.Percent, snap.DeviceID,
			snap.UpdatedAt.UnixMilli())
		return err
	})
}

// ReadProgress returns the stored row for (user, item), or nil when the
// item has never been played.
func (m *Manager) ReadProgress(ctx context.Context, userID, itemID string) (*progress.Snapshot, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT chapter_index, position_ms, percent, device_id, updated_at
		FROM progress
		WHERE user_id = ? AND item_id = ?
	`, userID, itemID)

	var (
		chapterIndex int
		positionMS   int64
		percent      float64
		deviceID     sql.NullString
		updatedAtMS  int64
	)
	err := row.Scan(&chapterIndex, &positionMS, &percent, &deviceID, &updatedAtMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &progress.Snapshot{
		UserID:       userID,
		ItemID:       itemID,
		ChapterIndex: chapterIndex,
		Position:     time.Duration(positionMS) * time.Millisecond,
		Percent:      percent,
		DeviceID:     db.NullStringValue(deviceID),
		UpdatedAt:    time.UnixMilli(updatedAtMS),
	}, nil
}

// Recent returns the user's most recently updated rows, newest first.
func (m *Manager) Recent(ctx context.Context, userID string, limit int) ([]progress.Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, chapter_index, position_ms, percent, device_id, updated_at
		FROM progress
		WHERE user_id = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []progress.Snapshot
	for rows.Next() {
		var (
			snap        progress.Snapshot
			positionMS  int64
			deviceID    sql.NullString
			updatedAtMS int64
		)
		if err := rows.Scan(&snap.ItemID, &snap.ChapterIndex, &positionMS,
			&snap.Percent, &deviceID, &updatedAtMS); err != nil {
			return nil, err
		}
		snap.UserID = userID
		snap.Position = time.Duration(positionMS) * time.Millisecond
		snap.DeviceID = db.NullStringValue(deviceID)
		snap.UpdatedAt = time.UnixMilli(updatedAtMS)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Verify Manager implements the progress store contract.
var _ progress.Store = (*Manager)(nil)
