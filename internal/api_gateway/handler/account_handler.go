package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/api_gateway/middleware"
	"github.com/adhub-billing-ledger/internal/api_gateway/service"
	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/payment"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create opens a new account with zero balance
func (h *AccountHandler) Create(c *gin.Context) {
	acc, err := h.accountService.CreateAccount(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to create account", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByID retrieves an account by its ID, returning 404 if not found
func (h *AccountHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acc, err := h.accountService.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Adjust applies a signed manual correction to an account's balance
func (h *AccountHandler) Adjust(c *gin.Context) {
	idParam := c.Param("id")
	accountID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var req AdjustAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.logger.Error("Invalid adjustment amount", "amount", req.Amount, "error", err)
		RespondBadRequest(c, "Invalid amount")
		return
	}

	var idempotencyKey *string
	if req.IdempotencyKey != "" {
		idempotencyKey = &req.IdempotencyKey
	}

	p, entry, err := h.accountService.Adjust(c.Request.Context(), accountID, amount, idempotencyKey, middleware.GetCorrelationID(c))
	if err != nil {
		h.respondAdjustError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"payment": mapPaymentToResponse(p),
		"entry":   mapLedgerEntryToResponse(entry),
	})
}

func (h *AccountHandler) respondAdjustError(c *gin.Context, err error) {
	var dup payment.DuplicateOperationError
	var dupKey payment.ErrDuplicateIdempotencyKey
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, account.ErrInsufficientBalance):
		RespondWithError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Adjustment would take the balance below zero")
	case errors.As(err, &dup):
		RespondConflict(c, "Idempotency key already used by payment "+dup.PaymentID.String())
	case errors.As(err, &dupKey):
		RespondConflict(c, "Idempotency key already reserved by a concurrent request")
	case errors.Is(err, payment.ErrOperationInFlight):
		RespondConflict(c, "A matching operation is already in flight")
	case errors.Is(err, account.ErrVersionConflict{}):
		RespondConflict(c, "Account was modified concurrently, retry with current state")
	default:
		h.logger.Error("Failed to adjust account", "error", err)
		RespondInternalError(c)
	}
}

// mapAccountToResponse maps an account entity to an account response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	resp := AccountResponse{
		ID:         acc.ID.String(),
		Balance:    acc.Balance.String(),
		Version:    acc.Version,
		NotExpired: acc.NotExpired,
		CreatedAt:  acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  acc.UpdatedAt.Format(time.RFC3339),
	}

	if acc.SubscriptionID != nil {
		id := acc.SubscriptionID.String()
		resp.SubscriptionID = &id
	}
	if acc.SubscriptionStart != nil {
		resp.SubscriptionStart = acc.SubscriptionStart.Format(time.RFC3339)
	}
	if acc.SubscriptionEnd != nil {
		resp.SubscriptionEnd = acc.SubscriptionEnd.Format(time.RFC3339)
	}

	return resp
}
