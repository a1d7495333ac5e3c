package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adhub-billing-ledger/internal/api_gateway/service"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
)

// LedgerHandler handles HTTP requests for the audit trail
type LedgerHandler struct {
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// GetByAccountID retrieves paginated ledger history for an account
func (h *LedgerHandler) GetByAccountID(c *gin.Context) {
	accountIDParam := c.Param("id")
	accountID, err := uuid.Parse(accountIDParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "account_id", accountIDParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.ledgerService.GetEntriesByAccountID(
		c.Request.Context(),
		accountID,
		pagination.Page,
		pagination.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to get ledger entries", "account_id", accountIDParam, "error", err)
		RespondInternalError(c)
		return
	}

	var responses []LedgerEntryResponse
	for _, entry := range entries {
		responses = append(responses, mapLedgerEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// Verify re-checks the balance chain over the account's full history
func (h *LedgerHandler) Verify(c *gin.Context) {
	accountIDParam := c.Param("id")
	accountID, err := uuid.Parse(accountIDParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "account_id", accountIDParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	total, err := h.ledgerService.VerifyChain(c.Request.Context(), accountID)
	if err != nil {
		var integrityErr ledger.IntegrityError
		if errors.As(err, &integrityErr) {
			RespondOK(c, LedgerVerifyResponse{
				AccountID: accountID.String(),
				Entries:   total,
				Valid:     false,
				Reason:    integrityErr.Reason,
			})
			return
		}
		h.logger.Error("Failed to verify ledger chain", "account_id", accountIDParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, LedgerVerifyResponse{
		AccountID: accountID.String(),
		Entries:   total,
		Valid:     true,
	})
}

// mapLedgerEntryToResponse maps a ledger entry to a response DTO
func mapLedgerEntryToResponse(entry *ledger.Entry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		EntryID:       entry.ID.String(),
		AccountID:     entry.AccountID.String(),
		Operation:     string(entry.Operation),
		Amount:        entry.Amount.String(),
		BalanceBefore: entry.BalanceBefore.String(),
		BalanceAfter:  entry.BalanceAfter.String(),
		Fingerprint:   entry.Fingerprint,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}

	if entry.ReferenceID != nil {
		id := entry.ReferenceID.String()
		resp.ReferenceID = &id
	}

	return resp
}
