package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botbot/backend/internal/models"
)

type BotRepo struct {
	pool *pgxpool.Pool
}

func NewBotRepo(pool *pgxpool.Pool) *BotRepo {
	return &BotRepo{pool: pool}
}

const botCols = `id, wallet_address, name, description, api_key_hash, api_key_prefix, skills, accepted_tokens, min_budgets, status, max_concurrent, auto_accept, rating::text, rated_count, completed_tasks, created_at, updated_at`

func scanBot(row pgx.Row) (*models.Bot, error) {
	var b models.Bot
	err := row.Scan(&b.ID, &b.WalletAddress, &b.Name, &b.Description, &b.APIKeyHash, &b.APIKeyPrefix, &b.Skills, &b.AcceptedTokens, &b.MinBudgets, &b.Status, &b.MaxConcurrent, &b.AutoAccept, &b.Rating, &b.RatedCount, &b.CompletedTasks, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BotRepo) Create(ctx context.Context, b *models.Bot) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bots (id, wallet_address, name, description, api_key_hash, api_key_prefix, skills, accepted_tokens, min_budgets, status, max_concurrent, auto_accept)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, b.ID, b.WalletAddress, b.Name, b.Description, b.APIKeyHash, b.APIKeyPrefix, b.Skills, b.AcceptedTokens, b.MinBudgets, b.Status, b.MaxConcurrent, b.AutoAccept).Scan(&b.CreatedAt, &b.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (r *BotRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bot, error) {
	b, err := scanBot(r.pool.QueryRow(ctx, `SELECT `+botCols+` FROM bots WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *BotRepo) GetByWallet(ctx context.Context, wallet string) (*models.Bot, error) {
	b, err := scanBot(r.pool.QueryRow(ctx, `SELECT `+botCols+` FROM bots WHERE wallet_address = $1`, wallet))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// FindByAPIKeyHash resolves the bearer credential. Lookup is by exact
// digest match; the raw key never reaches the database.
func (r *BotRepo) FindByAPIKeyHash(ctx context.Context, keyHash string) (*models.Bot, error) {
	b, err := scanBot(r.pool.QueryRow(ctx, `SELECT `+botCols+` FROM bots WHERE api_key_hash = $1`, keyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *BotRepo) List(ctx context.Context) ([]*models.Bot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+botCols+` FROM bots ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// UpdateSettings writes the caller-editable subset. Reputation fields and
// the credential are deliberately not reachable from here.
func (r *BotRepo) UpdateSettings(ctx context.Context, b *models.Bot) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bots SET skills = $2, accepted_tokens = $3, min_budgets = $4, max_concurrent = $5, auto_accept = $6, status = $7, updated_at = now()
		WHERE id = $1
	`, b.ID, b.Skills, b.AcceptedTokens, b.MinBudgets, b.MaxConcurrent, b.AutoAccept, b.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyRatingTx folds one confirmation rating into the bot's running mean
// and bumps both counters, as a single SQL expression so concurrent
// confirmations for the same bot cannot lose updates. The mean divides
// by rated_count, not completed_tasks: auto-confirmed deliveries bump
// only the latter and must not drag the mean toward zero.
func (r *BotRepo) ApplyRatingTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bots SET
			rating = round((rating * rated_count + $2) / (rated_count + 1), 1),
			rated_count = rated_count + 1,
			completed_tasks = completed_tasks + 1,
			updated_at = now()
		WHERE id = $1
	`, id, rating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementCompletedTx bumps completed_tasks without touching the rating.
// Used by the auto-confirm sweep, where no review exists.
func (r *BotRepo) IncrementCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bots SET completed_tasks = completed_tasks + 1, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BotRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM bots`).Scan(&n)
	return n, err
}
