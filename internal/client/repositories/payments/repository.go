// Package payments keeps the local payment history of subscriptions.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/dbx"
)

type Repository interface {
	// Insert stores p, assigning an id when empty.
	Insert(ctx context.Context, p *models.Payment) error
	ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Payment, error)
	DeleteBySubscription(ctx context.Context, subscriptionID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, subscription_id, amount, paid_at, status) VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.SubscriptionID, p.Amount.String(), dbx.FormatTime(p.PaidAt), string(p.Status))
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subscription_id, amount, paid_at, status FROM payments
		WHERE subscription_id = ? ORDER BY paid_at DESC
	`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select payments: %w", err)
	}
	defer rows.Close()

	result := make([]models.Payment, 0)
	for rows.Next() {
		var (
			p              models.Payment
			amount, paidAt string
			status         string
		)
		if err := rows.Scan(&p.ID, &p.SubscriptionID, &amount, &paidAt, &status); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if err := p.Amount.UnmarshalText([]byte(amount)); err != nil {
			return nil, fmt.Errorf("failed to decode amount %q: %w", amount, err)
		}
		if p.PaidAt, err = dbx.ParseTime(paidAt); err != nil {
			return nil, err
		}
		p.Status = models.PaymentStatus(status)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteBySubscription(ctx context.Context, subscriptionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE subscription_id = ?`, subscriptionID); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	return nil
}
