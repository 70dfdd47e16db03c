// Package dashboard serves the account-facing read endpoints: profile,
// credit ledger, and the remaining balance on the upstream provider
// account.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/newdo/backend/internal/middleware"
	"github.com/newdo/backend/internal/models"
)

// LedgerReader lists a user's credit ledger entries.
type LedgerReader interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.CreditConsumption, error)
}

// ProviderCredits reports the credit balance left on the upstream
// generation account, shared across all users.
type ProviderCredits interface {
	CreditsRemaining(ctx context.Context) (int, error)
}

type Handler struct {
	ledger   LedgerReader
	provider ProviderCredits
	log      *slog.Logger
}

func NewHandler(ledger LedgerReader, provider ProviderCredits, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ledger: ledger, provider: provider, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"credit_balance": user.CreditBalance,
		"created_at":     user.CreatedAt,
	})
}

// GET /api/v1/credit-ledger
func (h *Handler) ListCreditLedger(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.ledger.ListByUserID(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list credit ledger", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.CreditConsumption{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/provider-credits
func (h *Handler) GetProviderCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := h.provider.CreditsRemaining(r.Context())
	if err != nil {
		h.log.Error("query provider credits", "error", err)
		http.Error(w, `{"error":"provider unavailable"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": credits})
}
