// Package users caches authenticated accounts in the local store so the
// client can log in again while offline.
package users

import (
	"context"

	"github.com/manisoft/subman/internal/client/models"
)

// Repository persists users keyed by id with a unique email index.
type Repository interface {
	// CreateOrUpdate inserts u or updates the row with the same id. When no
	// row has u.ID but another row has u.Email, that row is re-keyed to u.ID
	// and updated. The stored user is returned.
	CreateOrUpdate(ctx context.Context, u *models.User) (*models.User, error)

	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// SetCredentials stores the offline-login salt and verifier of a user.
	SetCredentials(ctx context.Context, userID string, salt, verifier []byte) error
	GetCredentials(ctx context.Context, userID string) (salt, verifier []byte, err error)
}
