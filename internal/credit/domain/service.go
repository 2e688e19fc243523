package domain

import "context"

// ApplyPaymentRequest carries a confirmed external payment. PaymentID is
// the idempotency key issued by the payment provider.
type ApplyPaymentRequest struct {
	UserID         string
	UserName       string
	PaymentID      string
	CustomerID     string
	Amount         string
	Currency       string
	ProductID      string
	CreditsGranted int64
}

type ApplyPaymentResult struct {
	AlreadyProcessed bool  `json:"already_processed"`
	CreditsGranted   int64 `json:"credits_granted,omitempty"`
}

type SpendCreditsRequest struct {
	UserID       string
	Credits      int64
	Description  string
	RelatedRunID string
}

type SpendCreditsResult struct {
	Balance int64 `json:"balance"`
}

// GrantCreditsRequest credits a user without a payment record, for bonus
// and refund grants issued from the admin console.
type GrantCreditsRequest struct {
	UserID      string
	Credits     int64
	Type        TransactionType
	Description string
}

type Service interface {
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (ApplyPaymentResult, error)
	SpendCredits(ctx context.Context, req SpendCreditsRequest) (SpendCreditsResult, error)
	GrantCredits(ctx context.Context, req GrantCreditsRequest) error
	GetAccount(ctx context.Context, userID string) (*CreditAccount, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
}
