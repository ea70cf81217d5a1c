package models

import "time"

// MigrationFailure records one legacy entry that could not be copied.
type MigrationFailure struct {
	Handle  string
	Message string
}

// MigrationSkip records one legacy entry that was left alone.
type MigrationSkip struct {
	Handle string
	Reason string
}

// MigrationReport summarises one migration pass.
type MigrationReport struct {
	Total    int
	Migrated int
	Skipped  int
	Skips    []MigrationSkip
	Errors   []MigrationFailure
	Started  time.Time
	Finished time.Time
}

// HasErrors reports whether any entry failed.
func (r *MigrationReport) HasErrors() bool { return len(r.Errors) > 0 }

// MigrationStatus is a point-in-time view of both storage shapes.
type MigrationStatus struct {
	LegacyCount     int
	StructuredCount int64
	Pending         int
	LegacyPresent   bool
}

// BackupResult describes an archived legacy snapshot.
type BackupResult struct {
	Key      string
	Count    int
	Archived time.Time
}
