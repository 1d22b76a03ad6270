package cli

import (
	"context"
	"errors"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/logging"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for email, name and password and creates an account. A
// successful registration also starts a session.
func (a *App) Register(ctx context.Context, _ []string) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Register(ctx, email, string(password), name)
	if err != nil {
		a.log.Warn(ctx, "registration failed", logging.Err(err)...)
		printlnFn("Registration failed:", describeError(err))
		return err
	}

	printlnFn("Success! Logged in as", displayName(u))
	return nil
}

// Login prompts for credentials and authenticates. When the server cannot be
// reached the service falls back to the credentials cached by the previous
// online login.
func (a *App) Login(ctx context.Context, _ []string) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Login(ctx, email, string(password))
	if err != nil {
		a.log.Warn(ctx, "login failed", logging.Err(err)...)
		printlnFn("Login unsuccessful:", describeError(err))
		return err
	}

	printlnFn("Logged in as", displayName(u), "("+string(a.mode())+")")
	_ = a.Reminders(ctx, nil)
	return nil
}

// Logout ends the session. Cached subscriptions stay on the device.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.authService.Logout(ctx); err != nil {
		printlnFn("Logout failed:", err.Error())
		return err
	}
	printlnFn("Logged out")
	return nil
}

func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name + " <" + u.Email + ">"
	}
	return u.Email
}

// describeError turns service errors into short user-facing text.
func describeError(err error) string {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return "authentication failed, please log in again"
	case errors.Is(err, client.ErrUnavailable):
		return "server is unreachable"
	case errors.Is(err, client.ErrNotFound), errors.Is(err, common.ErrorNotFound):
		return "not found"
	case errors.Is(err, common.ErrorNoSession):
		return "not logged in"
	default:
		return err.Error()
	}
}
