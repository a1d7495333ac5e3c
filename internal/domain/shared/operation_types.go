package shared

// OperationType classifies a balance-affecting operation
type OperationType string

const (
	OperationDeposit             OperationType = "DEPOSIT"
	OperationWithdrawal          OperationType = "WITHDRAWAL"
	OperationSubscriptionPayment OperationType = "SUBSCRIPTION_PAYMENT"
	OperationRefund              OperationType = "REFUND"
	OperationAdjustment          OperationType = "ADJUSTMENT"
)

// ValidOperationType reports whether t is a known operation type
func ValidOperationType(t OperationType) bool {
	switch t {
	case OperationDeposit, OperationWithdrawal, OperationSubscriptionPayment, OperationRefund, OperationAdjustment:
		return true
	}
	return false
}

// PaymentStatus defines payment processing states
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// FailureReason defines payment failure categories
type FailureReason string

const (
	FailureReasonAccountNotFound     FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonInsufficientBalance FailureReason = "INSUFFICIENT_BALANCE"
	FailureReasonInvalidAmount       FailureReason = "INVALID_AMOUNT"
	FailureReasonVersionConflict     FailureReason = "VERSION_CONFLICT"
	FailureReasonDuplicateOperation  FailureReason = "DUPLICATE_OPERATION"
	FailureReasonOperationInFlight   FailureReason = "OPERATION_IN_FLIGHT"
	FailureReasonUnknownError        FailureReason = "UNKNOWN_ERROR"
)

// OutboxStatus defines archive publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
