// Package syncqueue persists pending sync operations in FIFO order.
//
// The autoincrement seq column is the queue order; rows are removed one by
// one as operations are confirmed by the server.
package syncqueue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/dbx"
)

type Repository interface {
	// Append stores op at the tail of the queue and sets op.Seq.
	Append(ctx context.Context, op *models.SyncOperation) error
	// List returns every pending operation, oldest first.
	List(ctx context.Context) ([]models.SyncOperation, error)
	Count(ctx context.Context) (int, error)
	// Remove deletes an operation; removing an absent id is not an error.
	Remove(ctx context.Context, id string) error
	// RecordFailure bumps the attempt counter and stores the last error.
	RecordFailure(ctx context.Context, id string, reason string) error
	// Retarget points every operation aimed at oldTarget to newTarget.
	Retarget(ctx context.Context, entity models.EntityKind, oldTarget, newTarget string) (int64, error)
	// RemoveByTarget drops every operation aimed at target.
	RemoveByTarget(ctx context.Context, entity models.EntityKind, target string) (int64, error)
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, op *models.SyncOperation) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_operations (id, kind, entity, payload, target_id, created_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, string(op.Kind), string(op.Entity), []byte(op.Payload), op.TargetID,
		dbx.FormatTime(op.CreatedAt), op.Attempts, op.LastError)
	if err != nil {
		return fmt.Errorf("failed to append sync operation: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read sync operation seq: %w", err)
	}
	op.Seq = seq
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.SyncOperation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, kind, entity, payload, target_id, created_at, attempts, last_error
		FROM sync_operations ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync operations: %w", err)
	}
	defer rows.Close()

	result := make([]models.SyncOperation, 0)
	for rows.Next() {
		var (
			op           models.SyncOperation
			kind, entity string
			payload      []byte
			created      string
		)
		if err := rows.Scan(&op.Seq, &op.ID, &kind, &entity, &payload, &op.TargetID, &created, &op.Attempts, &op.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan sync operation: %w", err)
		}
		op.Kind = models.OperationKind(kind)
		op.Entity = models.EntityKind(entity)
		if len(payload) > 0 {
			op.Payload = payload
		}
		if op.CreatedAt, err = dbx.ParseTime(created); err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync operations: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sync operations: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove sync operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, id string, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_operations SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to record sync failure: %w", err)
	}
	return dbx.MustAffect(res)
}

func (r *SQLiteRepository) Retarget(ctx context.Context, entity models.EntityKind, oldTarget, newTarget string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_operations SET target_id = ? WHERE entity = ? AND target_id = ?
	`, newTarget, string(entity), oldTarget)
	return affected(res, err, "retarget")
}

func (r *SQLiteRepository) RemoveByTarget(ctx context.Context, entity models.EntityKind, target string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sync_operations WHERE entity = ? AND target_id = ?
	`, string(entity), target)
	return affected(res, err, "remove")
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_operations`); err != nil {
		return fmt.Errorf("failed to clear sync operations: %w", err)
	}
	return nil
}

func affected(res sql.Result, err error, verb string) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("failed to %s sync operations: %w", verb, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
