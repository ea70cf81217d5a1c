// Package store is the single entry point for account reads and writes. It
// hides the fact that accounts live in two shapes: the structured per-account
// store (system of record for writes) and the legacy container whose embedded
// users list is being phased out.
//
// Lookups prefer the structured store and fall back to the legacy list.
// Records are never merged across shapes; legacy entries are converted with
// models.LegacyUser.ToAccount and nothing legacy-shaped leaves this package.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/legacy"
)

type AccountStore struct {
	structured accounts.Repository
	legacy     legacy.Repository
}

func NewAccountStore(structured accounts.Repository, legacy legacy.Repository) *AccountStore {
	return &AccountStore{structured: structured, legacy: legacy}
}

func (s *AccountStore) loadLegacy(ctx context.Context) (*models.LegacyCollection, error) {
	c, err := s.legacy.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load legacy collection: %w", err)
	}
	return c, nil
}

// find runs the structured lookup and, on a miss, the legacy scan.
func (s *AccountStore) find(ctx context.Context,
	structured func(context.Context) (*models.Account, error),
	index func(*models.LegacyCollection) int) (*models.Account, error) {

	a, err := structured(ctx)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	c, err := s.loadLegacy(ctx)
	if err != nil {
		return nil, err
	}
	if i := index(c); i >= 0 {
		return c.Users[i].ToAccount(), nil
	}
	return nil, common.ErrNotFound
}

// FindByHandle returns the account with handle from either shape, or
// common.ErrNotFound.
func (s *AccountStore) FindByHandle(ctx context.Context, handle string) (*models.Account, error) {
	return s.find(ctx,
		func(ctx context.Context) (*models.Account, error) { return s.structured.GetByHandle(ctx, handle) },
		func(c *models.LegacyCollection) int { return c.IndexOfHandle(handle) })
}

// FindByEmail matches email case-insensitively in either shape.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.find(ctx,
		func(ctx context.Context) (*models.Account, error) { return s.structured.GetByEmail(ctx, email) },
		func(c *models.LegacyCollection) int { return c.IndexOfEmail(email) })
}

// FindByEmailForAuthentication is FindByEmail with the lockout fields loaded.
// Legacy accounts carry zero attempts and no lock.
func (s *AccountStore) FindByEmailForAuthentication(ctx context.Context, email string) (*models.Account, error) {
	return s.find(ctx,
		func(ctx context.Context) (*models.Account, error) {
			return s.structured.GetByEmailForAuthentication(ctx, email)
		},
		func(c *models.LegacyCollection) int { return c.IndexOfEmail(email) })
}

// ExistsHandle reports whether handle is taken in either shape.
func (s *AccountStore) ExistsHandle(ctx context.Context, handle string) (bool, error) {
	_, err := s.FindByHandle(ctx, handle)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// FindAll returns the structured accounts when there are any, otherwise the
// legacy list. The two are never unioned.
func (s *AccountStore) FindAll(ctx context.Context) ([]*models.Account, error) {
	list, err := s.structured.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		return list, nil
	}

	c, err := s.loadLegacy(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*models.Account, 0, len(c.Users))
	for _, u := range c.Users {
		result = append(result, u.ToAccount())
	}
	return result, nil
}

// Create writes account into the structured store. A handle or email match in
// the legacy list, or a unique-constraint violation in the structured store,
// yields common.ErrDuplicateIdentity.
func (s *AccountStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	c, err := s.loadLegacy(ctx)
	if err != nil {
		return nil, err
	}
	if c.IndexOfHandle(account.Handle) >= 0 {
		return nil, fmt.Errorf("%w: handle %q exists in legacy collection", common.ErrDuplicateIdentity, account.Handle)
	}
	if c.IndexOfEmail(account.Email) >= 0 {
		return nil, fmt.Errorf("%w: email exists in legacy collection", common.ErrDuplicateIdentity)
	}

	account.Email = strings.ToLower(account.Email)
	account.Source = models.SourceStructured
	return s.structured.Create(ctx, account)
}

// UpdateByHandle patches a structured account. It returns (nil, nil) when the
// handle is absent from the structured store, including when it exists only in
// the legacy list: legacy accounts are read-only until migrated.
func (s *AccountStore) UpdateByHandle(ctx context.Context, handle string, patch models.AccountPatch) (*models.Account, error) {
	a, err := s.structured.UpdateByHandle(ctx, handle, patch)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteByHandle removes the account from the structured store, or failing
// that from the legacy list, and returns its pre-deletion values. Absent in
// both shapes yields common.ErrNotFound with nothing mutated.
func (s *AccountStore) DeleteByHandle(ctx context.Context, handle string) (*models.Account, error) {
	a, err := s.structured.DeleteByHandle(ctx, handle)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	u, err := s.legacy.RemoveByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return u.ToAccount(), nil
}

// CountAll is the structured count plus the legacy list length. Accounts that
// were migrated but not yet cleaned up from the legacy list are counted twice.
func (s *AccountStore) CountAll(ctx context.Context) (int64, error) {
	n, err := s.structured.Count(ctx)
	if err != nil {
		return 0, err
	}
	c, err := s.loadLegacy(ctx)
	if err != nil {
		return 0, err
	}
	return n + int64(len(c.Users)), nil
}
