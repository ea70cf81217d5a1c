package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE unique_violation.
const uniqueViolation = "23505"

const (
	defaultColumns = `id, handle, email, credential_digest, activated, avatar, created_at, updated_at`
	authColumns    = defaultColumns + `, failed_attempts, locked_until`
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, withLockout bool) (*models.Account, error) {
	a := &models.Account{Source: models.SourceStructured}
	dest := []any{&a.ID, &a.Handle, &a.Email, &a.CredentialDigest, &a.Activated, &a.Avatar, &a.CreatedAt, &a.UpdatedAt}

	var lockedUntil sql.NullTime
	if withLockout {
		dest = append(dest, &a.FailedAttempts, &lockedUntil)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	return a, nil
}

func wrapDBError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrDuplicateIdentity, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (id, handle, email, credential_digest, activated, avatar, failed_attempts, locked_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING ` + authColumns

	row := r.db.QueryRowContext(ctx, query,
		account.ID, account.Handle, strings.ToLower(account.Email), account.CredentialDigest,
		account.Activated, account.Avatar, account.FailedAttempts, account.LockedUntil,
		account.CreatedAt, account.UpdatedAt)

	created, err := scanAccount(row, true)
	if err != nil {
		return nil, wrapDBError(err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByHandle(ctx context.Context, handle string) (*models.Account, error) {
	query := `SELECT ` + defaultColumns + ` FROM accounts WHERE handle = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, handle), false)
	if err != nil {
		return nil, wrapDBError(err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + defaultColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, email), false)
	if err != nil {
		return nil, wrapDBError(err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByEmailForAuthentication(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + authColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, email), true)
	if err != nil {
		return nil, wrapDBError(err)
	}
	return a, nil
}

func (r *PostgresRepository) ExistsByHandleOrEmail(ctx context.Context, handle, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE handle = $1 OR lower(email) = lower($2))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, handle, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + defaultColumns + ` FROM accounts ORDER BY created_at, handle`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows, false)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// UpdateByHandle applies patch and returns the updated record, or
// common.ErrNotFound when no structured account has that handle.
func (r *PostgresRepository) UpdateByHandle(ctx context.Context, handle string, patch models.AccountPatch) (*models.Account, error) {
	var sets []string
	var args []any

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FailedAttempts != nil {
		set("failed_attempts", *patch.FailedAttempts)
	}
	if patch.ClearLock {
		sets = append(sets, "locked_until = NULL")
	} else if patch.LockedUntil != nil {
		set("locked_until", *patch.LockedUntil)
	}
	if patch.Activated != nil {
		set("activated", *patch.Activated)
	}
	if patch.Avatar != nil {
		set("avatar", *patch.Avatar)
	}
	if patch.CredentialDigest != nil {
		set("credential_digest", *patch.CredentialDigest)
	}
	set("updated_at", patch.Timestamp())

	args = append(args, handle)
	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE handle = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), authColumns)

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...), true)
	if err != nil {
		return nil, wrapDBError(err)
	}
	return a, nil
}

func (r *PostgresRepository) DeleteByHandle(ctx context.Context, handle string) (*models.Account, error) {
	query := `DELETE FROM accounts WHERE handle = $1 RETURNING ` + authColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, handle), true)
	if err != nil {
		return nil, wrapDBError(err)
	}
	return a, nil
}
