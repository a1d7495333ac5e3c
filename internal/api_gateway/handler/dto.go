package handler

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID                string  `json:"id"`
	Balance           string  `json:"balance"`
	Version           int64   `json:"version"`
	SubscriptionID    *string `json:"subscription_id,omitempty"`
	SubscriptionStart string  `json:"subscription_start,omitempty"`
	SubscriptionEnd   string  `json:"subscription_end,omitempty"`
	NotExpired        bool    `json:"not_expired"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// AdjustAccountRequest represents a manual balance correction. Amount is a
// signed decimal string; zero records an audit marker.
type AdjustAccountRequest struct {
	Amount         string `json:"amount" binding:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// CreatePaymentRequest represents a request to create a new payment
type CreatePaymentRequest struct {
	AccountID      string `json:"account_id" binding:"required,uuid"`
	Operation      string `json:"operation" binding:"required,oneof=DEPOSIT WITHDRAWAL REFUND"`
	Amount         string `json:"amount" binding:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	PaymentID      string  `json:"payment_id"`
	AccountID      string  `json:"account_id"`
	Operation      string  `json:"operation"`
	Amount         string  `json:"amount"`
	Status         string  `json:"status"`
	Method         string  `json:"method"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
	FailureReason  string  `json:"failure_reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
	ProcessedAt    string  `json:"processed_at,omitempty"`
}

// PurchaseSubscriptionRequest represents a subscription purchase from balance
type PurchaseSubscriptionRequest struct {
	AccountID      string `json:"account_id" binding:"required,uuid"`
	Period         string `json:"period" binding:"required,oneof=month year"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	EntryID       string  `json:"entry_id"`
	AccountID     string  `json:"account_id"`
	Operation     string  `json:"operation"`
	Amount        string  `json:"amount"`
	ReferenceID   *string `json:"reference_id,omitempty"`
	BalanceBefore string  `json:"balance_before"`
	BalanceAfter  string  `json:"balance_after"`
	Fingerprint   string  `json:"fingerprint"`
	CreatedAt     string  `json:"created_at"`
}

// LedgerVerifyResponse reports the outcome of a chain verification
type LedgerVerifyResponse struct {
	AccountID string `json:"account_id"`
	Entries   int64  `json:"entries"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
