package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/botbot/backend/internal/escrow"
	"github.com/botbot/backend/internal/metrics"
	"github.com/botbot/backend/internal/models"
	"github.com/botbot/backend/internal/repository"
)

// sweepBatchSize bounds how many stale deliveries one sweep run touches.
const sweepBatchSize = 100

// AutoConfirmSweepArgs is the periodic job that enforces the 48h confirm
// window: deliveries the buyer never confirmed or disputed get confirmed
// on their behalf, mirroring the contract's autoConfirm.
type AutoConfirmSweepArgs struct{}

func (AutoConfirmSweepArgs) Kind() string { return "auto_confirm_sweep" }

func (AutoConfirmSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByState: []rivertype.JobState{rivertype.JobStateAvailable, rivertype.JobStateRunning, rivertype.JobStateScheduled}},
	}
}

// SweepTaskStore is the task repository subset the sweep needs.
type SweepTaskStore interface {
	ListStaleDelivered(ctx context.Context, cutoff time.Time, limit int) ([]*models.Task, error)
	AutoConfirmTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*uuid.UUID, error)
}

// SweepBotStore is the bot repository subset the sweep needs.
type SweepBotStore interface {
	IncrementCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// TxBeginner abstracts transaction creation for tests.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type AutoConfirmWorker struct {
	river.WorkerDefaults[AutoConfirmSweepArgs]
	pool     TxBeginner
	tasks    SweepTaskStore
	bots     SweepBotStore
	contract escrow.Contract
	logger   *slog.Logger
}

func NewAutoConfirmWorker(pool TxBeginner, tasks SweepTaskStore, bots SweepBotStore, contract escrow.Contract, logger *slog.Logger) *AutoConfirmWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoConfirmWorker{pool: pool, tasks: tasks, bots: bots, contract: contract, logger: logger}
}

func (w *AutoConfirmWorker) Work(ctx context.Context, _ *river.Job[AutoConfirmSweepArgs]) error {
	cutoff := time.Now().Add(-models.ConfirmWindow)
	stale, err := w.tasks.ListStaleDelivered(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list stale deliveries: %w", err)
	}

	for _, task := range stale {
		err := w.confirmOne(ctx, task.ID)
		if errors.Is(err, repository.ErrInvalidState) {
			// A buyer confirm or dispute won the race; nothing to do.
			continue
		}
		if err != nil {
			// Keep sweeping; the next run retries whatever is left.
			w.logger.Error("auto-confirm failed", "task_id", task.ID, "error", err)
			continue
		}
		metrics.AutoConfirms.Inc()
		metrics.TaskTransitions.WithLabelValues(string(models.TaskStatusDelivered), string(models.TaskStatusConfirmed)).Inc()
		w.logger.Info("delivery auto-confirmed", "task_id", task.ID)
	}
	return nil
}

// confirmOne transitions a single task. The conditional update inside
// AutoConfirmTx makes a concurrent buyer confirm/dispute win cleanly: we
// just see ErrInvalidState here and move on.
func (w *AutoConfirmWorker) confirmOne(ctx context.Context, taskID uuid.UUID) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	botID, err := w.tasks.AutoConfirmTx(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if botID != nil {
		// No rating to fold in; the running mean stays over rated
		// confirmations only.
		if err := w.bots.IncrementCompletedTx(ctx, tx, *botID); err != nil {
			return fmt.Errorf("increment completed: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if err := w.contract.AutoConfirm(ctx, taskID); err != nil {
		metrics.EscrowCallErrors.WithLabelValues("autoConfirm").Inc()
		w.logger.Error("escrow autoConfirm mirror failed", "task_id", taskID, "error", err)
	}
	return nil
}
