// Package legacy reads and rewrites the legacy container: a single document
// whose "users" field embeds an ordered list of flat account entries.
package legacy

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// DefaultCollection names the container row holding the legacy users list.
const DefaultCollection = "users"

// Repository gives whole-document access to the legacy container. Load on an
// absent container (or one whose users field was dropped) returns an empty
// collection with Exists=false, not an error.
type Repository interface {
	Load(ctx context.Context) (*models.LegacyCollection, error)
	// RemoveByHandle deletes the entry with handle and persists the shortened
	// list, returning the removed entry or common.ErrNotFound.
	RemoveByHandle(ctx context.Context, handle string) (*models.LegacyUser, error)
	// Replace overwrites the users list, creating the container if needed.
	Replace(ctx context.Context, users []models.LegacyUser) error
	// DropUsers removes the users field from the container.
	DropUsers(ctx context.Context) error
}
