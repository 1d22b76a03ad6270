package client

import (
	"context"

	"github.com/manisoft/subman/internal/client/models"
)

// AuthResult is the answer of a successful login or registration. Token is
// empty when the server registered the account without starting a session.
type AuthResult struct {
	Token string
	User  models.User
}

// Client is the remote SubMan API as seen by the services.
type Client interface {
	Close() error

	// SetToken sets the bearer token sent with authenticated calls; an empty
	// token removes the header.
	SetToken(token string)

	// Ping reports whether the API answers at all. Any HTTP response counts.
	Ping(ctx context.Context) error

	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, email, password, name string) (*AuthResult, error)

	ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error)
	CreateSubscription(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}
