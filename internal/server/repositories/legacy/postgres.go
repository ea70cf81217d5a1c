package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// DB is satisfied by *sql.DB.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

// PostgresRepository keeps the container as a JSONB document in the
// legacy_collections table.
type PostgresRepository struct {
	db   DB
	name string
}

func NewPostgresRepository(db DB, collection string) *PostgresRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &PostgresRepository{db: db, name: collection}
}

func decodeUsers(raw []byte) ([]models.LegacyUser, error) {
	var users []models.LegacyUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode legacy users: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) load(ctx context.Context, db dbx.DBTX, forUpdate bool) (*models.LegacyCollection, error) {
	query := `SELECT document->'users' FROM legacy_collections WHERE name = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := db.QueryRowContext(ctx, query, r.name).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.LegacyCollection{}, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if raw == nil {
		return &models.LegacyCollection{}, nil
	}

	users, err := decodeUsers(raw)
	if err != nil {
		return nil, err
	}
	return &models.LegacyCollection{Exists: true, Users: users}, nil
}

func (r *PostgresRepository) Load(ctx context.Context) (*models.LegacyCollection, error) {
	return r.load(ctx, r.db, false)
}

func (r *PostgresRepository) RemoveByHandle(ctx context.Context, handle string) (*models.LegacyUser, error) {
	var removed *models.LegacyUser

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		c, err := r.load(ctx, tx, true)
		if err != nil {
			return err
		}

		i := c.IndexOfHandle(handle)
		if i < 0 {
			return common.ErrNotFound
		}
		u := c.Users[i]
		removed = &u

		rest := make([]models.LegacyUser, 0, len(c.Users)-1)
		rest = append(rest, c.Users[:i]...)
		rest = append(rest, c.Users[i+1:]...)

		payload, err := json.Marshal(rest)
		if err != nil {
			return err
		}

		query := `UPDATE legacy_collections SET document = jsonb_set(document, '{users}', $2::jsonb), updated_at = now() WHERE name = $1`
		if _, err := tx.ExecContext(ctx, query, r.name, payload); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *PostgresRepository) Replace(ctx context.Context, users []models.LegacyUser) error {
	if users == nil {
		users = []models.LegacyUser{}
	}
	payload, err := json.Marshal(users)
	if err != nil {
		return err
	}

	query := `INSERT INTO legacy_collections (name, document) VALUES ($1, jsonb_build_object('users', $2::jsonb))
		 ON CONFLICT (name) DO UPDATE SET document = legacy_collections.document || jsonb_build_object('users', $2::jsonb), updated_at = now()`
	if _, err := r.db.ExecContext(ctx, query, r.name, payload); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DropUsers(ctx context.Context) error {
	query := `UPDATE legacy_collections SET document = document - 'users', updated_at = now() WHERE name = $1`
	if _, err := r.db.ExecContext(ctx, query, r.name); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
