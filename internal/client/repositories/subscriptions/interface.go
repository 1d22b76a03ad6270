package subscriptions

import (
	"context"

	"github.com/manisoft/subman/internal/client/models"
)

// Repository describes the CRUD and index queries over locally cached
// subscriptions.
type Repository interface {
	// Insert adds a new record and fails if the id is taken.
	Insert(ctx context.Context, s *models.Subscription) error

	// CreateOrUpdate inserts s or fully replaces the row with the same id.
	CreateOrUpdate(ctx context.Context, s *models.Subscription) error

	// Update fully replaces an existing row; common.ErrorNotFound if absent.
	Update(ctx context.Context, s *models.Subscription) error

	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	ListByCategory(ctx context.Context, categoryID string) ([]models.Subscription, error)
	// ListPending returns the records of userID not yet confirmed by the server.
	ListPending(ctx context.Context, userID string) ([]models.Subscription, error)

	// Delete removes a record; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// ReplaceID re-keys a record from a temporary id to the server id and
	// marks it confirmed. A row already stored under newID is replaced, so
	// the record exists exactly once afterwards.
	ReplaceID(ctx context.Context, oldID, newID string) error

	// ReassignUser moves every record of oldUserID to newUserID.
	ReassignUser(ctx context.Context, oldUserID, newUserID string) (int64, error)

	// SetState changes only the record state.
	SetState(ctx context.Context, id string, state models.RecordState) error

	// PruneConfirmed deletes confirmed records of userID whose id is not in
	// keep and returns how many were removed. Pending records are untouched.
	PruneConfirmed(ctx context.Context, userID string, keep []string) (int64, error)
}
