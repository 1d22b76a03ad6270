// Package services contains the application services of the SubMan client:
// authentication, the subscription repository and the sync queue.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/cryptox"
	"github.com/manisoft/subman/internal/logging"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server; when it cannot be reached,
//     verify the password against the credentials cached by the last
//     online login.
//   - Register: create an account and start a session.
//   - Logout: end the session. The cached user row is kept.
//   - RestoreSession: resume the session persisted by a previous run.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	Logout(ctx context.Context) error
	RestoreSession(ctx context.Context) (*models.User, error)
	CurrentUser() *models.User
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	store  *client.Store
	log    logging.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current *models.User
}

// NewAuthService constructs an AuthService bound to the given API client and store.
func NewAuthService(c client.Client, store *client.Store, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &authService{client: c, store: store, log: log, now: time.Now}
}

func (a *authService) CurrentUser() *models.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil
	}
	u := *a.current
	return &u
}

func (a *authService) setCurrent(u *models.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = u
}

// Login authenticates online, falling back to the offline verifier when the
// server is unavailable. Offline login without cached credentials returns
// client.ErrLocalDataNotAvailable.
func (a *authService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	res, err := a.client.Login(ctx, email, password)
	if errors.Is(err, client.ErrUnavailable) {
		a.log.Info(ctx, "server unavailable, trying offline login", "email", email)
		return a.offlineLogin(ctx, email, password)
	}
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	return a.establish(ctx, res, password)
}

func (a *authService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	res, err := a.client.Register(ctx, email, password, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("register error: %w", err)
	}
	// Some deployments answer a registration without a token.
	if res.Token == "" {
		return a.Login(ctx, email, password)
	}
	return a.establish(ctx, res, password)
}

// establish persists a server-confirmed session together with the offline
// credentials derived from password.
func (a *authService) establish(ctx context.Context, res *client.AuthResult, password string) (*models.User, error) {
	salt, verifier := cryptox.NewVerifier([]byte(password))
	defer common.WipeByteArray(verifier)

	var stored *models.User
	err := a.store.InTx(ctx, func(ctx context.Context, r *client.Repositories) error {
		previous, err := r.Users.GetByEmail(ctx, res.User.Email)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		u := res.User
		if stored, err = r.Users.CreateOrUpdate(ctx, &u); err != nil {
			return err
		}
		if previous != nil && previous.ID != stored.ID {
			n, err := r.Subscriptions.ReassignUser(ctx, previous.ID, stored.ID)
			if err != nil {
				return err
			}
			a.log.Info(ctx, "user id reconciled", "old", previous.ID, "new", stored.ID, "subscriptions", n)
		}
		if err := r.Users.SetCredentials(ctx, stored.ID, salt, verifier); err != nil {
			return err
		}
		if err := r.Metadata.Set(ctx, common.MetaAuthToken, []byte(res.Token)); err != nil {
			return err
		}
		return r.Metadata.Set(ctx, common.MetaCurrentUser, []byte(stored.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}

	a.client.SetToken(res.Token)
	a.setCurrent(stored)
	return a.CurrentUser(), nil
}

func (a *authService) offlineLogin(ctx context.Context, email, password string) (*models.User, error) {
	u, err := a.store.Users.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, client.ErrLocalDataNotAvailable
	}
	if err != nil {
		return nil, err
	}

	salt, verifier, err := a.store.Users.GetCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if len(salt) == 0 || len(verifier) == 0 {
		return nil, client.ErrLocalDataNotAvailable
	}
	if !cryptox.Verify([]byte(password), salt, verifier) {
		return nil, client.ErrUnauthorized
	}

	if err := a.store.Metadata.Set(ctx, common.MetaCurrentUser, []byte(u.ID)); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}
	token, err := a.store.Metadata.Get(ctx, common.MetaAuthToken)
	if err != nil {
		return nil, err
	}
	if token != nil {
		a.client.SetToken(string(token))
	}

	a.setCurrent(u)
	return a.CurrentUser(), nil
}

// Logout clears the token and the current-user reference.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.store.Metadata.Delete(ctx, common.MetaAuthToken, common.MetaCurrentUser); err != nil {
		return fmt.Errorf("logout error: %w", err)
	}
	a.client.SetToken("")
	a.setCurrent(nil)
	return nil
}

// RestoreSession resumes a persisted session. It returns common.ErrorNoSession
// when none is stored and common.ErrTokenExpired (after logging out) when the
// token has expired.
func (a *authService) RestoreSession(ctx context.Context) (*models.User, error) {
	token, err := a.store.Metadata.Get(ctx, common.MetaAuthToken)
	if err != nil {
		return nil, err
	}
	userID, err := a.store.Metadata.Get(ctx, common.MetaCurrentUser)
	if err != nil {
		return nil, err
	}
	if len(token) == 0 || len(userID) == 0 {
		return nil, common.ErrorNoSession
	}

	if err := a.checkToken(string(token)); err != nil {
		if lerr := a.Logout(ctx); lerr != nil {
			return nil, lerr
		}
		return nil, err
	}

	u, err := a.store.Users.GetByID(ctx, string(userID))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorNoSession
	}
	if err != nil {
		return nil, err
	}

	a.client.SetToken(string(token))
	a.setCurrent(u)
	return a.CurrentUser(), nil
}

// checkToken reads the expiry of a JWT without verifying the signature; the
// signing secret lives on the server.
func (a *authService) checkToken(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimPrefix(token, common.BearerPrefix), claims); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if exp != nil && !exp.After(a.now()) {
		return common.ErrTokenExpired
	}
	return nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
