package legacy

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu     sync.Mutex
	exists bool
	users  []models.LegacyUser
}

// NewMemoryRepository returns a container seeded with users. A nil slice
// means the container does not exist.
func NewMemoryRepository(users []models.LegacyUser) *MemoryRepository {
	r := &MemoryRepository{}
	if users != nil {
		r.exists = true
		r.users = append([]models.LegacyUser(nil), users...)
	}
	return r
}

func (r *MemoryRepository) Load(_ context.Context) (*models.LegacyCollection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &models.LegacyCollection{
		Exists: r.exists,
		Users:  append([]models.LegacyUser(nil), r.users...),
	}, nil
}

func (r *MemoryRepository) RemoveByHandle(_ context.Context, handle string) (*models.LegacyUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := models.LegacyCollection{Users: r.users}
	i := c.IndexOfHandle(handle)
	if i < 0 {
		return nil, common.ErrNotFound
	}
	removed := r.users[i]

	rest := make([]models.LegacyUser, 0, len(r.users)-1)
	rest = append(rest, r.users[:i]...)
	r.users = append(rest, r.users[i+1:]...)

	return &removed, nil
}

func (r *MemoryRepository) Replace(_ context.Context, users []models.LegacyUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exists = true
	r.users = append([]models.LegacyUser(nil), users...)
	return nil
}

func (r *MemoryRepository) DropUsers(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exists = false
	r.users = nil
	return nil
}
