package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit ledger entry types. Debits are written at task creation and
// are never refunded — a task that fails or never dispatches still
// consumes its credits (business policy).
const (
	CreditEntryConsumption = "consumption"
	CreditEntryPurchase    = "purchase"
)

type CreditConsumption struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	EntryType    string    `json:"entry_type"`
	Credits      int       `json:"credits"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
