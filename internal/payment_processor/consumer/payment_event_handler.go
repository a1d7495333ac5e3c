package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/payment_processor/service"
	"github.com/adhub-billing-ledger/internal/platform/messaging/producers"
)

// PaymentEventHandler handles incoming payment request messages from Kafka
type PaymentEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewPaymentEventHandler creates a new handler
func NewPaymentEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *PaymentEventHandler {
	return &PaymentEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages
func (h *PaymentEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.PaymentRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal payment request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received payment request for processing",
		"payment_id", request.PaymentID.String(),
		"account_id", request.AccountID.String(),
		"operation", request.Operation,
		"amount", request.Amount.String(),
	)

	if err := h.processingService.ProcessPayment(ctx, &request); err != nil {
		logger.Error("Failed to process payment",
			"payment_id", request.PaymentID.String(),
			"account_id", request.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("processing payment %s failed: %w", request.PaymentID.String(), err)
	}

	logger.Info("Successfully processed payment", "payment_id", request.PaymentID.String())
	return nil // Success, commit offset
}
