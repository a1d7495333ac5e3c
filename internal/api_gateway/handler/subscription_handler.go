package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adhub-billing-ledger/internal/api_gateway/middleware"
	"github.com/adhub-billing-ledger/internal/api_gateway/service"
	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/subscription"
)

// SubscriptionHandler handles HTTP requests for subscription purchases
type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	logger              *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(logger *slog.Logger, subscriptionService service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		logger:              logger,
	}
}

// Purchase debits the plan cost from the account balance and activates the
// subscription. Settlement is synchronous: the response carries the settled
// payment and its ledger entry.
func (h *SubscriptionHandler) Purchase(c *gin.Context) {
	idParam := c.Param("id")
	subscriptionID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid subscription ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid subscription ID")
		return
	}

	var req PurchaseSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		h.logger.Error("Invalid account ID", "account_id", req.AccountID, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var idempotencyKey *string
	if req.IdempotencyKey != "" {
		idempotencyKey = &req.IdempotencyKey
	}

	p, entry, err := h.subscriptionService.Purchase(
		c.Request.Context(),
		accountID,
		subscriptionID,
		subscription.BillingPeriod(req.Period),
		idempotencyKey,
		middleware.GetCorrelationID(c),
	)
	if err != nil {
		h.respondPurchaseError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"payment": mapPaymentToResponse(p),
		"entry":   mapLedgerEntryToResponse(entry),
	})
}

func (h *SubscriptionHandler) respondPurchaseError(c *gin.Context, err error) {
	var dup payment.DuplicateOperationError
	var dupKey payment.ErrDuplicateIdempotencyKey
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, subscription.ErrSubscriptionNotFound{}):
		RespondNotFound(c, "Subscription plan not found")
	case errors.Is(err, subscription.ErrInvalidBillingPeriod):
		RespondBadRequest(c, "Invalid billing period")
	case errors.Is(err, account.ErrInsufficientBalance):
		RespondWithError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Balance does not cover the plan cost")
	case errors.As(err, &dup):
		RespondConflict(c, "Duplicate purchase, already settled by payment "+dup.PaymentID.String())
	case errors.As(err, &dupKey):
		RespondConflict(c, "Idempotency key already reserved by a concurrent request")
	case errors.Is(err, payment.ErrOperationInFlight):
		RespondConflict(c, "A matching purchase is already in flight")
	case errors.Is(err, account.ErrVersionConflict{}):
		RespondConflict(c, "Account was modified concurrently, retry with current state")
	default:
		h.logger.Error("Failed to purchase subscription", "error", err)
		RespondInternalError(c)
	}
}
