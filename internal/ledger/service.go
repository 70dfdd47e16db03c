package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/newdo/backend/internal/models"
)

// Service is the credit ledger contract the task lifecycle consumes.
// There is deliberately no refund operation: credits debited for a task
// are spent even if the task never dispatches or never resolves.
type Service interface {
	Debit(ctx context.Context, userID uuid.UUID, credits int) (*models.CreditConsumption, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) Debit(ctx context.Context, userID uuid.UUID, credits int) (*models.CreditConsumption, error) {
	return s.repo.Debit(ctx, userID, credits)
}

// ErrInsufficientCredits is returned when the user's balance is too low
// for the requested debit.
var ErrInsufficientCredits = errInsufficientCredits
