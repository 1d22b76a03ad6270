package subscriptions

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

const columns = `id, user_id, category_id, name, description, cost, billing_cycle, start_date, end_date,
	status, next_billing_date, color, logo, website, notes, created_at, updated_at, state`

func args(s *models.Subscription) []any {
	return []any{
		s.ID, s.UserID, s.CategoryID, s.Name, s.Description, s.Cost.String(), string(s.BillingCycle),
		dbx.FormatTime(s.StartDate), dbx.FormatNullTime(s.EndDate), string(s.Status),
		dbx.FormatTime(s.NextBillingDate), s.Color, s.Logo, s.Website, s.Notes,
		dbx.FormatTime(s.CreatedAt), dbx.FormatTime(s.UpdatedAt), string(s.State),
	}
}

func (r *SQLiteRepository) Insert(ctx context.Context, s *models.Subscription) error {
	query := `INSERT INTO subscriptions (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, args(s)...); err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, s *models.Subscription) error {
	query := `INSERT INTO subscriptions (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			category_id = excluded.category_id,
			name = excluded.name,
			description = excluded.description,
			cost = excluded.cost,
			billing_cycle = excluded.billing_cycle,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			next_billing_date = excluded.next_billing_date,
			color = excluded.color,
			logo = excluded.logo,
			website = excluded.website,
			notes = excluded.notes,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			state = excluded.state`
	if _, err := r.db.ExecContext(ctx, query, args(s)...); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, s *models.Subscription) error {
	query := `UPDATE subscriptions SET
		user_id = ?, category_id = ?, name = ?, description = ?, cost = ?, billing_cycle = ?,
		start_date = ?, end_date = ?, status = ?, next_billing_date = ?, color = ?, logo = ?,
		website = ?, notes = ?, created_at = ?, updated_at = ?, state = ?
		WHERE id = ?`
	a := args(s)
	res, err := r.db.ExecContext(ctx, query, append(a[1:], s.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return dbx.MustAffect(res)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM subscriptions WHERE id = ?`, id)
	s, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	return r.list(ctx, `SELECT `+columns+` FROM subscriptions WHERE user_id = ? ORDER BY next_billing_date, name`, userID)
}

func (r *SQLiteRepository) ListByCategory(ctx context.Context, categoryID string) ([]models.Subscription, error) {
	return r.list(ctx, `SELECT `+columns+` FROM subscriptions WHERE category_id = ? ORDER BY next_billing_date, name`, categoryID)
}

func (r *SQLiteRepository) ListPending(ctx context.Context, userID string) ([]models.Subscription, error) {
	return r.list(ctx, `SELECT `+columns+` FROM subscriptions WHERE user_id = ? AND state = ? ORDER BY created_at`,
		userID, string(models.StatePendingSync))
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select subscriptions: %w", err)
	}
	defer rows.Close()

	result := make([]models.Subscription, 0)
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceID(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return r.SetState(ctx, oldID, models.StateConfirmed)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, newID); err != nil {
		return fmt.Errorf("failed to replace subscription id: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET id = ?, state = ? WHERE id = ?`,
		newID, string(models.StateConfirmed), oldID)
	if err != nil {
		return fmt.Errorf("failed to replace subscription id: %w", err)
	}
	if err := dbx.MustAffect(res); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE payments SET subscription_id = ? WHERE subscription_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("failed to move payments: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReassignUser(ctx context.Context, oldUserID, newUserID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET user_id = ? WHERE user_id = ?`, newUserID, oldUserID)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SetState(ctx context.Context, id string, state models.RecordState) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("failed to set subscription state: %w", err)
	}
	return dbx.MustAffect(res)
}

func (r *SQLiteRepository) PruneConfirmed(ctx context.Context, userID string, keep []string) (int64, error) {
	query := `DELETE FROM subscriptions WHERE user_id = ? AND state = ?`
	params := []any{userID, string(models.StateConfirmed)}
	if len(keep) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`
		for _, id := range keep {
			params = append(params, id)
		}
	}
	res, err := r.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune subscriptions: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.Subscription, error) {
	var (
		s                         models.Subscription
		cost, cycle, status, st   string
		start, next, created, upd string
		end                       sql.NullString
	)
	err := row.Scan(&s.ID, &s.UserID, &s.CategoryID, &s.Name, &s.Description, &cost, &cycle,
		&start, &end, &status, &next, &s.Color, &s.Logo, &s.Website, &s.Notes, &created, &upd, &st)
	if err != nil {
		return nil, err
	}

	if err := s.Cost.UnmarshalText([]byte(cost)); err != nil {
		return nil, fmt.Errorf("failed to decode cost %q: %w", cost, err)
	}
	s.BillingCycle = models.BillingCycle(cycle)
	s.Status = models.Status(status)
	s.State = models.RecordState(st)

	if s.StartDate, err = dbx.ParseTime(start); err != nil {
		return nil, err
	}
	if s.EndDate, err = dbx.ParseNullTime(end); err != nil {
		return nil, err
	}
	if s.NextBillingDate, err = dbx.ParseTime(next); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = dbx.ParseTime(created); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = dbx.ParseTime(upd); err != nil {
		return nil, err
	}
	return &s, nil
}
