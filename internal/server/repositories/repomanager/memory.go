package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/legacy"
)

// InMemoryRepositoryManager keeps both shapes in process memory.
type InMemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	legacy   *legacy.MemoryRepository
}

// NewInMemoryRepositoryManager seeds the legacy container with legacyUsers
// (nil leaves it absent).
func NewInMemoryRepositoryManager(legacyUsers []models.LegacyUser) *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		accounts: accounts.NewMemoryRepository(),
		legacy:   legacy.NewMemoryRepository(legacyUsers),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Accounts() accounts.Repository { return m.accounts }

func (m *InMemoryRepositoryManager) Legacy() legacy.Repository { return m.legacy }

func (m *InMemoryRepositoryManager) Close() error { return nil }
