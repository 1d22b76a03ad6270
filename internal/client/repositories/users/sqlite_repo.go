package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, email, name, role, avatar_url, created_at, updated_at, last_sync, version`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, u *models.User) (*models.User, error) {
	u.Email = normalizeEmail(u.Email)

	byEmail, err := r.GetByEmail(ctx, u.Email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if byEmail != nil && byEmail.ID != u.ID {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, u.ID); err != nil {
			return nil, fmt.Errorf("failed to reconcile user: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, `UPDATE users SET id = ? WHERE id = ?`, u.ID, byEmail.ID); err != nil {
			return nil, fmt.Errorf("failed to reconcile user: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, avatar_url, created_at, updated_at, last_sync, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			role = excluded.role,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at,
			last_sync = excluded.last_sync,
			version = excluded.version
	`, u.ID, u.Email, u.Name, string(u.Role), u.AvatarURL,
		dbx.FormatTime(u.CreatedAt), dbx.FormatTime(u.UpdatedAt), dbx.FormatNullTime(u.LastSync), u.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return r.GetByID(ctx, u.ID)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
	return scanUser(row)
}

func (r *SQLiteRepository) SetCredentials(ctx context.Context, userID string, salt, verifier []byte) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET offline_salt = ?, offline_verifier = ? WHERE id = ?`, salt, verifier, userID)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return dbx.MustAffect(res)
}

func (r *SQLiteRepository) GetCredentials(ctx context.Context, userID string) ([]byte, []byte, error) {
	var salt, verifier []byte
	err := r.db.QueryRowContext(ctx, `SELECT offline_salt, offline_verifier FROM users WHERE id = ?`, userID).Scan(&salt, &verifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return salt, verifier, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                models.User
		role             string
		created, updated string
		lastSync         sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.AvatarURL, &created, &updated, &lastSync, &u.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = models.Role(role)
	if u.CreatedAt, err = dbx.ParseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = dbx.ParseTime(updated); err != nil {
		return nil, err
	}
	if u.LastSync, err = dbx.ParseNullTime(lastSync); err != nil {
		return nil, err
	}
	return &u, nil
}
