package domain

import "errors"

var (
	ErrInvalidUser            = errors.New("invalid_user")
	ErrInvalidPaymentID       = errors.New("invalid_payment_id")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidCurrency        = errors.New("invalid_currency")
	ErrInvalidCredits         = errors.New("invalid_credits")
	ErrInvalidTransactionType = errors.New("invalid_transaction_type")
	ErrAccountNotFound        = errors.New("credit_account_not_found")
	ErrInsufficientCredits    = errors.New("insufficient_credits")
)
