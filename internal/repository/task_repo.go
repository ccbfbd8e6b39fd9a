package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botbot/backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// budget is NUMERIC in the schema and moved as text so no float touches it.
const taskCols = `id, title, description, budget::text, token, mode, skills, deadline, status, buyer_address, bot_id, delivery_content, delivery_attachments, delivered_at, rating, review, confirmed_at, dispute_reason, dispute_status, disputed_at, created_at, updated_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Budget, &t.Token, &t.Mode, &t.Skills, &t.Deadline, &t.Status, &t.BuyerAddress, &t.BotID, &t.DeliveryContent, &t.DeliveryAttachments, &t.DeliveredAt, &t.Rating, &t.Review, &t.ConfirmedAt, &t.DisputeReason, &t.DisputeStatus, &t.DisputedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, budget, token, mode, skills, deadline, status, buyer_address)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, t.ID, t.Title, t.Description, t.Budget, t.Token, t.Mode, t.Skills, t.Deadline, t.Status, t.BuyerAddress).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// List returns tasks newest-first, optionally filtered by status and buyer.
func (r *TaskRepo) List(ctx context.Context, status models.TaskStatus, buyer string) ([]*models.Task, error) {
	q := `SELECT ` + taskCols + ` FROM tasks WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		q += ` AND status = $1`
	}
	if buyer != "" {
		args = append(args, buyer)
		if len(args) == 1 {
			q += ` AND buyer_address = $1`
		} else {
			q += ` AND buyer_address = $2`
		}
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Claim atomically moves an open task to claimed for the given bot. The
// status check and the write are one conditional UPDATE so two concurrent
// claimants cannot both win; the loser sees ErrConflict.
func (r *TaskRepo) Claim(ctx context.Context, id, botID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $3, bot_id = $2, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, botID, models.TaskStatusClaimed, models.TaskStatusOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// MarkDelivered stores the delivery and stamps delivered_at, guarded on
// ownership and a claimable status. Caller resolves ownership beforehand;
// a zero-row update here means the status moved underneath us, or the
// row was deleted since the caller's fetch.
func (r *TaskRepo) MarkDelivered(ctx context.Context, id, botID uuid.UUID, content string, attachments []string) (deliveredAt time.Time, err error) {
	err = r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = $3, delivery_content = $4, delivery_attachments = $5, delivered_at = now(), updated_at = now()
		WHERE id = $1 AND bot_id = $2 AND status IN ($6, $7)
		RETURNING delivered_at
	`, id, botID, models.TaskStatusDelivered, content, attachments, models.TaskStatusClaimed, models.TaskStatusInProgress).Scan(&deliveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return time.Time{}, getErr
		}
		return time.Time{}, ErrInvalidState
	}
	return deliveredAt, err
}

// ConfirmTx moves a delivered task to confirmed and stores the review.
// Runs inside the caller's transaction so the bot reputation update
// commits atomically with the task transition.
func (r *TaskRepo) ConfirmTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating int, review *string) (botID *uuid.UUID, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE tasks SET status = $2, rating = $3, review = $4, confirmed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $5
		RETURNING bot_id
	`, id, models.TaskStatusConfirmed, rating, review, models.TaskStatusDelivered).Scan(&botID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return botID, err
}

// AutoConfirmTx is the sweep variant of ConfirmTx: no rating or review.
func (r *TaskRepo) AutoConfirmTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (botID *uuid.UUID, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE tasks SET status = $2, confirmed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING bot_id
	`, id, models.TaskStatusConfirmed, models.TaskStatusDelivered).Scan(&botID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidState
	}
	return botID, err
}

// Dispute moves a delivered task to disputed with a pending resolution.
func (r *TaskRepo) Dispute(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $2, dispute_reason = $3, dispute_status = $4, disputed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $5
	`, id, models.TaskStatusDisputed, reason, models.DisputePending, models.TaskStatusDelivered)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// DeleteOpen hard-deletes a task, but only while it is still unclaimed.
func (r *TaskRepo) DeleteOpen(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND status = $2`, id, models.TaskStatusOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// DeleteAll purges every task. Dev route only.
func (r *TaskRepo) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tasks`)
	return err
}

// ListStaleDelivered returns delivered tasks whose confirm window has
// lapsed, oldest first, for the auto-confirm sweep.
func (r *TaskRepo) ListStaleDelivered(ctx context.Context, cutoff time.Time, limit int) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskCols+` FROM tasks
		WHERE status = $1 AND delivered_at < $2
		ORDER BY delivered_at ASC
		LIMIT $3
	`, models.TaskStatusDelivered, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *TaskRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tasks`).Scan(&n)
	return n, err
}

func (r *TaskRepo) CountByStatus(ctx context.Context, status models.TaskStatus) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE status = $1`, status).Scan(&n)
	return n, err
}

// SumBudgetByStatus totals task budgets for a status, returned as the
// NUMERIC's text form.
func (r *TaskRepo) SumBudgetByStatus(ctx context.Context, status models.TaskStatus) (string, error) {
	var total string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(budget), 0)::text FROM tasks WHERE status = $1`, status).Scan(&total)
	return total, err
}
