package accounts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// MemoryRepository is an in-process Repository with the same uniqueness rules
// as the Postgres schema. Used when no database DSN is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	byHandle map[string]*models.Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byHandle: make(map[string]*models.Account)}
}

func project(a *models.Account, withLockout bool) *models.Account {
	c := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		c.LockedUntil = &t
	}
	if !withLockout {
		c.FailedAttempts = 0
		c.LockedUntil = nil
	}
	return &c
}

func (r *MemoryRepository) findEmail(email string) *models.Account {
	for _, a := range r.byHandle {
		if strings.EqualFold(a.Email, email) {
			return a
		}
	}
	return nil
}

func (r *MemoryRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHandle[account.Handle]; ok {
		return nil, fmt.Errorf("%w: accounts_handle_key", common.ErrDuplicateIdentity)
	}
	if r.findEmail(account.Email) != nil {
		return nil, fmt.Errorf("%w: accounts_email_key", common.ErrDuplicateIdentity)
	}

	stored := project(account, true)
	stored.Email = strings.ToLower(stored.Email)
	stored.Source = models.SourceStructured
	r.byHandle[stored.Handle] = stored

	return project(stored, true), nil
}

func (r *MemoryRepository) GetByHandle(_ context.Context, handle string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byHandle[handle]
	if !ok {
		return nil, common.ErrNotFound
	}
	return project(a, false), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a := r.findEmail(email); a != nil {
		return project(a, false), nil
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) GetByEmailForAuthentication(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a := r.findEmail(email); a != nil {
		return project(a, true), nil
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) ExistsByHandleOrEmail(_ context.Context, handle, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byHandle[handle]; ok {
		return true, nil
	}
	return r.findEmail(email) != nil, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Account, 0, len(r.byHandle))
	for _, a := range r.byHandle {
		result = append(result, project(a, false))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Handle < result[j].Handle
	})
	return result, nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byHandle)), nil
}

func (r *MemoryRepository) UpdateByHandle(_ context.Context, handle string, patch models.AccountPatch) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byHandle[handle]
	if !ok {
		return nil, common.ErrNotFound
	}
	patch.Apply(a, patch.Timestamp())
	return project(a, true), nil
}

func (r *MemoryRepository) DeleteByHandle(_ context.Context, handle string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byHandle[handle]
	if !ok {
		return nil, common.ErrNotFound
	}
	delete(r.byHandle, handle)
	return project(a, true), nil
}
