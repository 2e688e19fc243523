package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the storage boundary for the credit ledger. Methods take
// the database handle so the service can run them inside one transaction.
type Repository interface {
	// InsertPayment inserts the record, skipping on a payment_id conflict.
	// The boolean reports whether a row was actually written.
	InsertPayment(ctx context.Context, db *gorm.DB, record *PaymentRecord) (bool, error)
	FindPayment(ctx context.Context, db *gorm.DB, paymentID string) (*PaymentRecord, error)

	// CreditBalance applies a relative, in-store increment to balance and
	// total_purchased. Returns false when no account row exists yet.
	CreditBalance(ctx context.Context, db *gorm.DB, userID string, credits, purchased int64) (bool, error)
	// DebitBalance decrements balance and bumps total_used, guarded by
	// balance >= credits. Returns false when the guard fails or the
	// account is missing.
	DebitBalance(ctx context.Context, db *gorm.DB, userID string, credits int64) (bool, error)
	InsertAccount(ctx context.Context, db *gorm.DB, account *CreditAccount) error
	FindAccount(ctx context.Context, db *gorm.DB, userID string) (*CreditAccount, error)

	InsertTransaction(ctx context.Context, db *gorm.DB, txn *CreditTransaction) error
	ListTransactions(ctx context.Context, db *gorm.DB, userID string, limit int) ([]CreditTransaction, error)
}
