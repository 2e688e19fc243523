package repository

import (
	"context"

	"github.com/makestack-ai/makestack/internal/credit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, payment_id, user_id, user_name, customer_id, amount, currency,
			product_id, credits_granted, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (payment_id) DO NOTHING`,
		record.ID,
		record.PaymentID,
		record.UserID,
		record.UserName,
		record.CustomerID,
		record.Amount,
		record.Currency,
		record.ProductID,
		record.CreditsGranted,
		record.Status,
		record.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, paymentID string) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_id, user_id, user_name, customer_id, amount, currency,
			product_id, credits_granted, status, created_at
		 FROM payment_records
		 WHERE payment_id = ?
		 LIMIT 1`,
		paymentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CreditBalance(ctx context.Context, db *gorm.DB, userID string, credits, purchased int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE credit_accounts
		 SET balance = balance + ?,
		     total_purchased = total_purchased + ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		credits,
		purchased,
		userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DebitBalance(ctx context.Context, db *gorm.DB, userID string, credits int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE credit_accounts
		 SET balance = balance - ?,
		     total_used = total_used + ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND balance >= ?`,
		credits,
		credits,
		userID,
		credits,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.CreditAccount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_accounts (
			id, user_id, balance, total_purchased, total_used, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.UserID,
		account.Balance,
		account.TotalPurchased,
		account.TotalUsed,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, userID string) (*domain.CreditAccount, error) {
	var item domain.CreditAccount
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, balance, total_purchased, total_used, created_at, updated_at
		 FROM credit_accounts
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.CreditTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (
			id, user_id, amount, type, description, related_run_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.Amount,
		string(txn.Type),
		txn.Description,
		txn.RelatedRunID,
		txn.CreatedAt,
	).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var items []domain.CreditTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, amount, type, description, related_run_id, created_at
		 FROM credit_transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
