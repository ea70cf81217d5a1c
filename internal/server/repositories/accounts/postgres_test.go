package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	defaultCols = []string{"id", "handle", "email", "credential_digest", "activated", "avatar", "created_at", "updated_at"}
	authCols    = append(append([]string{}, defaultCols...), "failed_attempts", "locked_until")
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*handle,\s*email,.*\)\s*VALUES\s*\(\$1,.*\$10\)\s*RETURNING\s+id,.*locked_until$`

	rows := sqlmock.NewRows(authCols).
		AddRow("a-1", "alice", "alice@example.com", "digest", false, "", now, now, 0, nil)
	mock.ExpectQuery(q).
		WithArgs("a-1", "alice", "alice@example.com", "digest", false, "", 0, nil, now, now).
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), &models.Account{
		ID: "a-1", Handle: "alice", Email: "Alice@Example.com", CredentialDigest: "digest",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "a-1" || got.Handle != "alice" || got.Source != models.SourceStructured {
		t.Fatalf("unexpected account: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	_, err := repo.Create(context.Background(), &models.Account{ID: "a-1", Handle: "alice", Email: "a@x.io"})
	if !errors.Is(err, common.ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+accounts`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Account{ID: "a-1", Handle: "alice", Email: "a@x.io"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if errors.Is(err, common.ErrDuplicateIdentity) {
		t.Fatalf("plain db error must not map to duplicate")
	}
}

func TestGetByHandle_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*handle,.*updated_at\s+FROM\s+accounts\s+WHERE\s+handle\s*=\s*\$1$`
	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(defaultCols).AddRow("a-1", "alice", "alice@example.com", "d", true, "x.png", now, now))

	got, err := repo.GetByHandle(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByHandle error: %v", err)
	}
	if !got.Activated || got.Avatar != "x.png" || got.LockedUntil != nil {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestGetByHandle_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+accounts\s+WHERE\s+handle`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByHandle(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestGetByEmail_CaseInsensitiveQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*updated_at\s+FROM\s+accounts\s+WHERE\s+lower\(email\)\s*=\s*lower\(\$1\)$`
	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("Alice@Example.com").
		WillReturnRows(sqlmock.NewRows(defaultCols).AddRow("a-1", "alice", "alice@example.com", "d", false, "", now, now))

	got, err := repo.GetByEmail(context.Background(), "Alice@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.Handle != "alice" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestGetByEmailForAuthentication_IncludesLockout(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*failed_attempts,\s*locked_until\s+FROM\s+accounts\s+WHERE\s+lower\(email\)`
	now := time.Now()
	until := now.Add(5 * time.Minute)
	mock.ExpectQuery(q).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(authCols).AddRow("a-1", "alice", "alice@example.com", "d", false, "", now, now, 4, until))

	got, err := repo.GetByEmailForAuthentication(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmailForAuthentication error: %v", err)
	}
	if got.FailedAttempts != 4 || got.LockedUntil == nil || !got.LockedUntil.Equal(until) {
		t.Fatalf("lockout fields not scanned: %+v", got)
	}
}

func TestExistsByHandleOrEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+accounts\s+WHERE\s+handle\s*=\s*\$1\s+OR\s+lower\(email\)\s*=\s*lower\(\$2\)\)$`
	mock.ExpectQuery(q).
		WithArgs("bob", "bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsByHandleOrEmail(context.Background(), "bob", "bob@example.com")
	if err != nil || !ok {
		t.Fatalf("want true, got %v %v", ok, err)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+ORDER\s+BY\s+created_at,\s*handle$`).
		WillReturnRows(sqlmock.NewRows(defaultCols).
			AddRow("a-1", "alice", "alice@example.com", "d", false, "", now, now).
			AddRow("a-2", "bob", "bob@example.com", "d", false, "", now, now))

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[1].Handle != "bob" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+accounts$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.Count(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("want 7, got %d %v", n, err)
	}
}

func TestUpdateByHandle_LockPatch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	until := now.Add(5 * time.Minute)
	four := 4

	q := `(?s)^UPDATE\s+accounts\s+SET\s+failed_attempts\s*=\s*\$1,\s*locked_until\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+handle\s*=\s*\$4\s+RETURNING\s+id,.*locked_until$`
	mock.ExpectQuery(q).
		WithArgs(4, until, now, "alice").
		WillReturnRows(sqlmock.NewRows(authCols).AddRow("a-1", "alice", "alice@example.com", "d", false, "", now, now, 4, until))

	got, err := repo.UpdateByHandle(context.Background(), "alice", models.AccountPatch{FailedAttempts: &four, LockedUntil: &until, UpdatedAt: now})
	if err != nil {
		t.Fatalf("UpdateByHandle error: %v", err)
	}
	if got.FailedAttempts != 4 || got.LockedUntil == nil {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestUpdateByHandle_ClearLock(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	zero := 0
	q := `(?s)^UPDATE\s+accounts\s+SET\s+failed_attempts\s*=\s*\$1,\s*locked_until\s*=\s*NULL,\s*updated_at\s*=\s*\$2\s+WHERE\s+handle\s*=\s*\$3`
	mock.ExpectQuery(q).
		WithArgs(0, sqlmock.AnyArg(), "ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateByHandle(context.Background(), "ghost", models.AccountPatch{FailedAttempts: &zero, ClearLock: true})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteByHandle(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^DELETE\s+FROM\s+accounts\s+WHERE\s+handle\s*=\s*\$1\s+RETURNING\s+id,`
	mock.ExpectQuery(q).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(authCols).AddRow("a-1", "alice", "alice@example.com", "d", false, "", now, now, 0, nil))
	mock.ExpectQuery(q).
		WithArgs("alice").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.DeleteByHandle(context.Background(), "alice")
	if err != nil || got.Handle != "alice" {
		t.Fatalf("DeleteByHandle: %+v %v", got, err)
	}
	if _, err := repo.DeleteByHandle(context.Background(), "alice"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound on second delete, got %v", err)
	}
}
