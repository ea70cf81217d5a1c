// Package migration moves accounts from the legacy container into the
// structured store and manages the legacy list around that move: status,
// backup snapshots and forced cleanup.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/legacy"
	"github.com/google/uuid"
)

const skipAlreadyMigrated = "already migrated"

// MigrationError is returned by Migrate when at least one entry failed. The
// batch still ran to completion and Report holds every outcome.
type MigrationError struct {
	Report *models.MigrationReport
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("%s: %d of %d entries failed", common.ErrMigrationPartialFailure, len(e.Report.Errors), e.Report.Total)
}

func (e *MigrationError) Unwrap() error { return common.ErrMigrationPartialFailure }

type Engine struct {
	structured accounts.Repository
	legacy     legacy.Repository
	guard      Guard
	archive    Archive
	log        logging.Logger
	now        func() time.Time
}

type Option func(*Engine)

// WithGuard makes Migrate hold g for the duration of a pass.
func WithGuard(g Guard) Option { return func(e *Engine) { e.guard = g } }

// WithArchive sets the destination for Backup snapshots.
func WithArchive(a Archive) Option { return func(e *Engine) { e.archive = a } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(structured accounts.Repository, legacyRepo legacy.Repository, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		structured: structured,
		legacy:     legacyRepo,
		log:        log.With("module", "migration"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Migrate copies every legacy entry that is not yet in the structured store.
// Entries are processed independently and a failure is recorded without
// stopping the pass. Only a failure to read the legacy container aborts.
// The legacy list is left untouched.
func (e *Engine) Migrate(ctx context.Context) (report *models.MigrationReport, err error) {
	release, err := e.hold(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := e.legacy.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load legacy collection: %w", err)
	}

	report = &models.MigrationReport{Total: len(c.Users), Started: e.now()}
	for _, u := range c.Users {
		skipped, err := e.migrateOne(ctx, u)
		switch {
		case err != nil:
			report.Errors = append(report.Errors, models.MigrationFailure{Handle: u.Username, Message: err.Error()})
			e.log.Warn(ctx, "legacy entry not migrated", "handle", u.Username, "error", err)
		case skipped:
			report.Skipped++
			report.Skips = append(report.Skips, models.MigrationSkip{Handle: u.Username, Reason: skipAlreadyMigrated})
		default:
			report.Migrated++
		}
	}
	report.Finished = e.now()

	e.log.Info(ctx, "migration pass finished",
		"total", report.Total, "migrated", report.Migrated,
		"skipped", report.Skipped, "errors", len(report.Errors))

	if report.HasErrors() {
		return report, &MigrationError{Report: report}
	}
	return report, nil
}

// hold acquires the guard, if any, and returns the function releasing it.
func (e *Engine) hold(ctx context.Context) (func(), error) {
	if e.guard == nil {
		return func() {}, nil
	}
	release, err := e.guard.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn(ctx, "release migration guard", "error", err)
		}
	}, nil
}

func (e *Engine) migrateOne(ctx context.Context, u models.LegacyUser) (skipped bool, err error) {
	handle := strings.TrimSpace(u.Username)
	email := strings.ToLower(strings.TrimSpace(u.Email))

	exists, err := e.structured.ExistsByHandleOrEmail(ctx, handle, email)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	var missing []string
	if handle == "" {
		missing = append(missing, "handle is required")
	}
	if email == "" {
		missing = append(missing, "email is required")
	}
	if len(missing) > 0 {
		return false, common.NewValidationError(missing...)
	}

	a := u.ToAccount()
	a.Handle = handle
	a.ID = migratedID(a.ID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = e.now()
	}
	a.UpdatedAt = e.now()

	if _, err := e.structured.Create(ctx, a); err != nil {
		// Lost a race with another writer between the check and the insert.
		if errors.Is(err, common.ErrDuplicateIdentity) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// migratedID keeps a legacy identifier (given or derived) when it is a UUID.
func migratedID(legacyID string) string {
	if id, err := uuid.Parse(legacyID); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Status reports the size of both shapes and how many legacy entries have no
// structured counterpart yet.
func (e *Engine) Status(ctx context.Context) (*models.MigrationStatus, error) {
	c, err := e.legacy.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load legacy collection: %w", err)
	}
	n, err := e.structured.Count(ctx)
	if err != nil {
		return nil, err
	}

	st := &models.MigrationStatus{
		LegacyCount:     len(c.Users),
		StructuredCount: n,
		LegacyPresent:   c.Exists,
	}
	for _, u := range c.Users {
		exists, err := e.structured.ExistsByHandleOrEmail(ctx, u.Username, strings.ToLower(u.Email))
		if err != nil {
			return nil, err
		}
		if !exists {
			st.Pending++
		}
	}
	return st, nil
}

// Cleanup removes the users field from the legacy container. It refuses
// unless force is set and the structured store holds at least one account.
func (e *Engine) Cleanup(ctx context.Context, force bool) (int, error) {
	if !force {
		return 0, common.ErrCleanupNotForced
	}

	n, err := e.structured.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, common.ErrNothingMigrated
	}

	c, err := e.legacy.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load legacy collection: %w", err)
	}
	if err := e.legacy.DropUsers(ctx); err != nil {
		return 0, err
	}

	e.log.Info(ctx, "legacy users list removed", "entries", len(c.Users), "structured", n)
	return len(c.Users), nil
}
