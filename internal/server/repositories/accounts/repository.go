// Package accounts is the structured account store: one record per account
// with unique handle and case-insensitive unique email.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// Repository is the structured store. Lookups that miss return
// common.ErrNotFound; unique-constraint violations surface as
// common.ErrDuplicateIdentity.
//
// The default projection (GetByHandle, GetByEmail, List) leaves
// FailedAttempts and LockedUntil zeroed. GetByEmailForAuthentication and the
// mutating methods return them.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByHandle(ctx context.Context, handle string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByEmailForAuthentication(ctx context.Context, email string) (*models.Account, error)
	ExistsByHandleOrEmail(ctx context.Context, handle, email string) (bool, error)
	List(ctx context.Context) ([]*models.Account, error)
	Count(ctx context.Context) (int64, error)
	UpdateByHandle(ctx context.Context, handle string, patch models.AccountPatch) (*models.Account, error)
	DeleteByHandle(ctx context.Context, handle string) (*models.Account, error)
}
