package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// BackupPrefix is the key prefix for legacy snapshots.
const BackupPrefix = "legacy-backups"

var (
	ErrNoArchive       = errors.New("no backup archive configured")
	ErrInvalidSnapshot = errors.New("invalid legacy snapshot")
)

type snapshot struct {
	Collection string              `json:"collection"`
	TakenAt    time.Time           `json:"takenAt"`
	Count      int                 `json:"count"`
	Users      []models.LegacyUser `json:"users"`
}

// BackupKey builds the archive key for a snapshot taken at t.
func BackupKey(t time.Time) string {
	return fmt.Sprintf("%s/users_backup_%s.json", BackupPrefix, t.UTC().Format("20060102T150405.000Z"))
}

// Backup writes the current legacy list to the archive as one JSON document
// and returns its key and the number of archived entries.
func (e *Engine) Backup(ctx context.Context) (*models.BackupResult, error) {
	if e.archive == nil {
		return nil, ErrNoArchive
	}

	c, err := e.legacy.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load legacy collection: %w", err)
	}

	now := e.now()
	users := c.Users
	if users == nil {
		users = []models.LegacyUser{}
	}
	body, err := json.MarshalIndent(snapshot{
		Collection: "users",
		TakenAt:    now.UTC(),
		Count:      len(users),
		Users:      users,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	key := BackupKey(now)
	if err := e.archive.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("archive snapshot: %w", err)
	}

	e.log.Info(ctx, "legacy snapshot archived", "key", key, "count", len(users))
	return &models.BackupResult{Key: key, Count: len(users), Archived: now}, nil
}

// Restore replaces the legacy users list with the entries of a snapshot
// produced by Backup and returns how many entries were restored. It holds
// the migration guard so it cannot interleave with a migration pass.
func (e *Engine) Restore(ctx context.Context, body []byte) (int, error) {
	var snap snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if snap.Users == nil {
		return 0, fmt.Errorf("%w: no users list", ErrInvalidSnapshot)
	}
	if snap.Count != len(snap.Users) {
		return 0, fmt.Errorf("%w: count %d, %d entries", ErrInvalidSnapshot, snap.Count, len(snap.Users))
	}

	release, err := e.hold(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := e.legacy.Replace(ctx, snap.Users); err != nil {
		return 0, fmt.Errorf("restore legacy collection: %w", err)
	}

	e.log.Info(ctx, "legacy list restored from snapshot", "taken_at", snap.TakenAt, "count", len(snap.Users))
	return len(snap.Users), nil
}
