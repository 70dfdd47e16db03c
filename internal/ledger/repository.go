package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newdo/backend/internal/models"
)

var errInsufficientCredits = errors.New("insufficient credits")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Debit runs in its own transaction. It:
// a) Verifies credit_balance >= credits (via atomic conditional UPDATE)
// b) Deducts the balance on the user row
// c) Inserts a consumption record into credit_ledger
func (r *Repository) Debit(ctx context.Context, userID uuid.UUID, credits int) (*models.CreditConsumption, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var balanceAfter int
	err = tx.QueryRow(ctx, `
		UPDATE users
		SET credit_balance = credit_balance - $1, updated_at = now()
		WHERE id = $2 AND credit_balance >= $1
		RETURNING credit_balance
	`, credits, userID).Scan(&balanceAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errInsufficientCredits
	}
	if err != nil {
		return nil, err
	}

	entry := &models.CreditConsumption{
		ID:           uuid.New(),
		UserID:       userID,
		EntryType:    models.CreditEntryConsumption,
		Credits:      credits,
		BalanceAfter: balanceAfter,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_ledger (id, user_id, entry_type, credits, balance_after)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, entry.ID, entry.UserID, entry.EntryType, entry.Credits, entry.BalanceAfter).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.CreditConsumption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, entry_type, credits, balance_after, created_at
		FROM credit_ledger WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditConsumption
	for rows.Next() {
		var c models.CreditConsumption
		if err := rows.Scan(&c.ID, &c.UserID, &c.EntryType, &c.Credits, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
