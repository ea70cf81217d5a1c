package migration

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/legacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func legacyUsers(n int) []models.LegacyUser {
	users := make([]models.LegacyUser, 0, n)
	for i := 0; i < n; i++ {
		h := string(rune('a'+i)) + "user"
		users = append(users, models.LegacyUser{
			Username: h,
			Email:    strings.ToUpper(h) + "@Example.com",
			Password: "$2a$10$digest" + h,
		})
	}
	return users
}

func newEngine(users []models.LegacyUser, opts ...Option) (*Engine, *accounts.MemoryRepository, *legacy.MemoryRepository) {
	structured := accounts.NewMemoryRepository()
	legacyRepo := legacy.NewMemoryRepository(users)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(structured, legacyRepo, logging.NewNopLogger(), opts...), structured, legacyRepo
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, structured, legacyRepo := newEngine(legacyUsers(3))

	first, err := e.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 3, first.Migrated)
	assert.Equal(t, 0, first.Skipped)
	assert.Empty(t, first.Errors)

	second, err := e.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Migrated)
	assert.Equal(t, 3, second.Skipped)
	require.Len(t, second.Skips, 3)
	assert.Equal(t, skipAlreadyMigrated, second.Skips[0].Reason)

	n, err := structured.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	c, err := legacyRepo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Users, 3, "migrate must not touch the legacy list")
}

func TestMigrate_CarriesOptionalFields(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2019, 5, 6, 7, 8, 9, 0, time.UTC)
	active := true
	users := []models.LegacyUser{
		{ID: "7b0f2b0e-4c7e-4d67-9b8c-0d7a3f0a1e11", Username: "old", Email: "Old@Example.com",
			Password: "digest", Activated: &active, Avatar: "a.png", CreatedAt: &created},
		{ID: "5f1d", Username: "plain", Email: "plain@example.com", Password: "digest"},
	}
	e, structured, _ := newEngine(users)

	_, err := e.Migrate(ctx)
	require.NoError(t, err)

	old, err := structured.GetByHandle(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "7b0f2b0e-4c7e-4d67-9b8c-0d7a3f0a1e11", old.ID)
	assert.Equal(t, "old@example.com", old.Email)
	assert.Equal(t, "digest", old.CredentialDigest)
	assert.True(t, old.Activated)
	assert.Equal(t, "a.png", old.Avatar)
	assert.True(t, old.CreatedAt.Equal(created))

	plain, err := structured.GetByHandle(ctx, "plain")
	require.NoError(t, err)
	assert.NotEqual(t, "5f1d", plain.ID)
	assert.Len(t, plain.ID, 36)
	assert.False(t, plain.Activated)
	assert.True(t, plain.CreatedAt.Equal(fixedNow))
	assert.Equal(t, models.SourceStructured, plain.Source)
}

func TestMigrate_RecordsFailuresAndContinues(t *testing.T) {
	ctx := context.Background()
	users := []models.LegacyUser{
		{Username: "", Email: "noname@example.com", Password: "d"},
		{Username: "good", Email: "good@example.com", Password: "d"},
		{Username: "nomail", Email: "", Password: "d"},
	}
	e, structured, _ := newEngine(users)

	report, err := e.Migrate(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMigrationPartialFailure))

	var me *MigrationError
	require.True(t, errors.As(err, &me))
	assert.Same(t, report, me.Report)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Migrated)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "", report.Errors[0].Handle)
	assert.Equal(t, "nomail", report.Errors[1].Handle)
	assert.Contains(t, report.Errors[1].Message, "email is required")

	n, _ := structured.Count(ctx)
	assert.EqualValues(t, 1, n)
}

func TestMigrate_RerunSkipsCopyWithoutHandle(t *testing.T) {
	ctx := context.Background()
	e, _, legacyRepo := newEngine([]models.LegacyUser{{Username: "erin", Email: "erin@example.com", Password: "d"}})

	_, err := e.Migrate(ctx)
	require.NoError(t, err)

	c, err := legacyRepo.Load(ctx)
	require.NoError(t, err)
	users := append(c.Users, models.LegacyUser{Username: "", Email: "Erin@Example.com", Password: "d"})
	require.NoError(t, legacyRepo.Replace(ctx, users))

	report, err := e.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Migrated)
	assert.Equal(t, 2, report.Skipped)
	assert.Empty(t, report.Errors)
}

func TestMigrate_KeepsDerivedLegacyID(t *testing.T) {
	ctx := context.Background()
	e, structured, _ := newEngine([]models.LegacyUser{{Username: "fay", Email: "fay@example.com", Password: "d"}})

	_, err := e.Migrate(ctx)
	require.NoError(t, err)

	a, err := structured.GetByHandle(ctx, "fay")
	require.NoError(t, err)
	assert.Equal(t, models.LegacyAccountID("fay"), a.ID)
}

func TestMigrate_SkipsWhenEmailAlreadyStructured(t *testing.T) {
	ctx := context.Background()
	e, structured, _ := newEngine([]models.LegacyUser{{Username: "legacyname", Email: "Taken@Example.com", Password: "d"}})

	_, err := structured.Create(ctx, &models.Account{ID: "x", Handle: "newname", Email: "taken@example.com"})
	require.NoError(t, err)

	report, err := e.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Migrated)
	assert.Equal(t, 1, report.Skipped)
}

type failingLegacy struct{ legacy.Repository }

func (failingLegacy) Load(context.Context) (*models.LegacyCollection, error) {
	return nil, errors.New("connection refused")
}

func TestMigrate_LegacyLoadFailureAborts(t *testing.T) {
	e := NewEngine(accounts.NewMemoryRepository(), failingLegacy{}, logging.NewNopLogger())

	report, err := e.Migrate(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.False(t, errors.Is(err, common.ErrMigrationPartialFailure))
	assert.Contains(t, err.Error(), "connection refused")
}

type stubGuard struct {
	err      error
	acquired int
	released int
}

func (g *stubGuard) Acquire(context.Context) (func(context.Context) error, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.acquired++
	return func(context.Context) error { g.released++; return nil }, nil
}

func TestMigrate_Guard(t *testing.T) {
	ctx := context.Background()

	g := &stubGuard{}
	e, _, _ := newEngine(legacyUsers(1), WithGuard(g))
	_, err := e.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, g.acquired)
	assert.Equal(t, 1, g.released)

	busy := &stubGuard{err: common.ErrMigrationInProgress}
	e, structured, _ := newEngine(legacyUsers(1), WithGuard(busy))
	_, err = e.Migrate(ctx)
	assert.ErrorIs(t, err, common.ErrMigrationInProgress)
	n, _ := structured.Count(ctx)
	assert.Zero(t, n)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	e, structured, _ := newEngine(legacyUsers(3))

	_, err := structured.Create(ctx, &models.Account{ID: "1", Handle: "auser", Email: "auser@example.com"})
	require.NoError(t, err)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.MigrationStatus{LegacyCount: 3, StructuredCount: 1, Pending: 2, LegacyPresent: true}, st)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	e, _, legacyRepo := newEngine(legacyUsers(2))

	_, err := e.Cleanup(ctx, false)
	assert.ErrorIs(t, err, common.ErrCleanupNotForced)

	_, err = e.Cleanup(ctx, true)
	assert.ErrorIs(t, err, common.ErrNothingMigrated)

	c, _ := legacyRepo.Load(ctx)
	assert.Len(t, c.Users, 2, "refused cleanup must not mutate")

	_, err = e.Migrate(ctx)
	require.NoError(t, err)

	removed, err := e.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	c, _ = legacyRepo.Load(ctx)
	assert.False(t, c.Exists)
	assert.Empty(t, c.Users)
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memArchive) Put(_ context.Context, key string, body []byte) error {
	if a.err != nil {
		return a.err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = body
	return nil
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	arch := &memArchive{}
	e, _, _ := newEngine(legacyUsers(2), WithArchive(arch))

	res, err := e.Backup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "legacy-backups/users_backup_20240301T120000.000Z.json", res.Key)

	var snap snapshot
	require.NoError(t, json.Unmarshal(arch.objects[res.Key], &snap))
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, "auser", snap.Users[0].Username)
}

func TestBackup_Errors(t *testing.T) {
	ctx := context.Background()

	e, _, _ := newEngine(legacyUsers(1))
	_, err := e.Backup(ctx)
	assert.ErrorIs(t, err, ErrNoArchive)

	boom := errors.New("bucket missing")
	e, _, _ = newEngine(legacyUsers(1), WithArchive(&memArchive{err: boom}))
	_, err = e.Backup(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestBackup_EmptyCollection(t *testing.T) {
	arch := &memArchive{}
	e, _, _ := newEngine(nil, WithArchive(arch))

	res, err := e.Backup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.Contains(t, string(arch.objects[res.Key]), `"users": []`)
}

func TestRestore_RoundTripsBackup(t *testing.T) {
	ctx := context.Background()
	arch := &memArchive{}
	e, _, legacyRepo := newEngine(legacyUsers(3), WithArchive(arch))

	res, err := e.Backup(ctx)
	require.NoError(t, err)

	require.NoError(t, legacyRepo.DropUsers(ctx))
	c, err := legacyRepo.Load(ctx)
	require.NoError(t, err)
	require.False(t, c.Exists)

	n, err := e.Restore(ctx, arch.objects[res.Key])
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	c, err = legacyRepo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.Exists)
	require.Len(t, c.Users, 3)
	assert.Equal(t, "auser", c.Users[0].Username)
}

func TestRestore_RejectsBadSnapshots(t *testing.T) {
	ctx := context.Background()
	e, _, legacyRepo := newEngine(legacyUsers(1))

	for _, body := range []string{
		`not json`,
		`{"collection":"users","count":0}`,
		`{"collection":"users","count":2,"users":[{"username":"a","email":"a@x.io"}]}`,
	} {
		_, err := e.Restore(ctx, []byte(body))
		assert.ErrorIs(t, err, ErrInvalidSnapshot, body)
	}

	c, err := legacyRepo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Users, 1, "a rejected snapshot leaves the list alone")
}

func TestRestore_HoldsGuard(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"collection":"users","count":1,"users":[{"username":"amy","email":"amy@x.io"}]}`)

	g := &stubGuard{}
	e, _, _ := newEngine(nil, WithGuard(g))
	_, err := e.Restore(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, 1, g.acquired)
	assert.Equal(t, 1, g.released)

	e, _, legacyRepo := newEngine(nil, WithGuard(&stubGuard{err: common.ErrMigrationInProgress}))
	_, err = e.Restore(ctx, body)
	assert.ErrorIs(t, err, common.ErrMigrationInProgress)
	c, err := legacyRepo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Users)
}
