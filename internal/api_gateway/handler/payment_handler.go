package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/api_gateway/middleware"
	"github.com/adhub-billing-ledger/internal/api_gateway/service"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// PaymentHandler handles HTTP requests for payment operations
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Create initiates a new payment (deposit, withdrawal or refund) with
// idempotency support. Settlement happens asynchronously; the response is
// 202 with the PENDING payment unless an idempotency key replay returns the
// earlier payment.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
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

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		h.logger.Error("Invalid payment amount", "amount", req.Amount)
		RespondBadRequest(c, "Amount must be a positive decimal")
		return
	}

	var idempotencyKey *string
	if req.IdempotencyKey != "" {
		idempotencyKey = &req.IdempotencyKey
	}

	request := &shared.PaymentRequest{
		PaymentID:      uuid.New(),
		AccountID:      accountID,
		Operation:      shared.OperationType(req.Operation),
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  middleware.GetCorrelationID(c),
		Timestamp:      time.Now().UTC(),
	}

	p, replayed, err := h.paymentService.CreatePayment(c.Request.Context(), request)
	if err != nil {
		h.logger.Error("Failed to create payment", "error", err)
		RespondInternalError(c)
		return
	}

	if replayed {
		RespondOK(c, mapPaymentToResponse(p))
		return
	}

	RespondAccepted(c, mapPaymentToResponse(p))
}

// GetByID retrieves payment details by ID, returns 404 if not found
func (h *PaymentHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payment ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payment ID")
		return
	}

	p, err := h.paymentService.GetPaymentByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get payment", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	if p == nil {
		RespondNotFound(c, "Payment not found")
		return
	}

	RespondOK(c, mapPaymentToResponse(p))
}

// mapPaymentToResponse maps a payment entity to a payment response DTO
func mapPaymentToResponse(p *payment.Payment) PaymentResponse {
	resp := PaymentResponse{
		PaymentID:     p.ID.String(),
		AccountID:     p.AccountID.String(),
		Operation:     string(p.Operation),
		Amount:        p.Amount.String(),
		Status:        string(p.Status),
		Method:        string(p.Method),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}

	if p.SubscriptionID != nil {
		id := p.SubscriptionID.String()
		resp.SubscriptionID = &id
	}
	if p.ProcessedAt != nil {
		resp.ProcessedAt = p.ProcessedAt.Format(time.RFC3339)
	}

	return resp
}
