package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeUsage    TransactionType = "usage"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeBonus    TransactionType = "bonus"
)

const PaymentStatusSucceeded = "succeeded"

// CreditAccount holds the spendable balance for one user. At most one row
// per user; the balance is only ever mutated through the ledger service.
type CreditAccount struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID         string       `json:"user_id" gorm:"type:text;not null;uniqueIndex:ux_credit_accounts_user"`
	Balance        int64        `json:"balance" gorm:"not null;default:0"`
	TotalPurchased int64        `json:"total_purchased" gorm:"not null;default:0"`
	TotalUsed      int64        `json:"total_used" gorm:"not null;default:0"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"not null"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// PaymentRecord stores one external payment event. PaymentID is the
// idempotency key; the unique constraint on it is what makes duplicate
// webhook deliveries safe.
type PaymentRecord struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	PaymentID      string          `json:"payment_id" gorm:"type:text;not null;uniqueIndex:ux_payment_records_payment"`
	UserID         string          `json:"user_id" gorm:"type:text;not null;index"`
	UserName       string          `json:"user_name" gorm:"type:text"`
	CustomerID     string          `json:"customer_id" gorm:"type:text"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(18,6);not null"`
	Currency       string          `json:"currency" gorm:"type:text;not null"`
	ProductID      string          `json:"product_id" gorm:"type:text"`
	CreditsGranted int64           `json:"credits_granted" gorm:"not null"`
	Status         string          `json:"status" gorm:"type:text;not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

// CreditTransaction is the append-only audit log. Amounts are stored
// positive; Type determines the sign during reconciliation.
type CreditTransaction struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID       string          `json:"user_id" gorm:"type:text;not null;index"`
	Amount       int64           `json:"amount" gorm:"not null"`
	Type         TransactionType `json:"type" gorm:"type:text;not null"`
	Description  string          `json:"description" gorm:"type:text"`
	RelatedRunID *string         `json:"related_run_id" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }
