package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/legacy"
)

// RepositoryManager vends the two storage shapes behind one handle.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Accounts() accounts.Repository
	Legacy() legacy.Repository
	Close() error
}
