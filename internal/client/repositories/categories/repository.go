// Package categories stores the device-local subscription categories.
package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/dbx"
)

type Repository interface {
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	// CreateOrUpdate assigns an id when c.ID is empty; a name clash with a
	// different id updates the existing row instead.
	CreateOrUpdate(ctx context.Context, c *models.Category) (*models.Category, error)
	Delete(ctx context.Context, id string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	result := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name, description FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, c *models.Category) (*models.Category, error) {
	if c.ID == "" {
		var existing string
		err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, c.Name).Scan(&existing)
		switch {
		case err == nil:
			c.ID = existing
		case errors.Is(err, sql.ErrNoRows):
			c.ID = uuid.NewString()
		default:
			return nil, fmt.Errorf("failed to look up category: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description
	`, c.ID, c.Name, c.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to save category: %w", err)
	}
	return r.GetByID(ctx, c.ID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}
