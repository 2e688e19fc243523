package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/credit/domain"
	"github.com/makestack-ai/makestack/internal/metrics"
	"github.com/makestack-ai/makestack/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("credit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// ApplyPayment applies a confirmed external payment to the user's credit
// balance exactly once. The idempotency check, payment-record insert,
// balance upsert and transaction-log append run in one store transaction;
// a duplicate payment_id is a recognized no-op, not an error.
func (s *Service) ApplyPayment(ctx context.Context, req domain.ApplyPaymentRequest) (domain.ApplyPaymentResult, error) {
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.PaymentID == "" {
		return domain.ApplyPaymentResult{}, domain.ErrInvalidPaymentID
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ApplyPaymentResult{}, domain.ErrInvalidUser
	}
	if req.CreditsGranted < 0 {
		return domain.ApplyPaymentResult{}, domain.ErrInvalidCredits
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return domain.ApplyPaymentResult{}, domain.ErrInvalidCurrency
	}

	amount := decimal.Zero
	if raw := strings.TrimSpace(req.Amount); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			return domain.ApplyPaymentResult{}, domain.ErrInvalidAmount
		}
		amount = parsed
	}

	var result domain.ApplyPaymentResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		record := &domain.PaymentRecord{
			ID:             s.genID.Generate(),
			PaymentID:      req.PaymentID,
			UserID:         req.UserID,
			UserName:       strings.TrimSpace(req.UserName),
			CustomerID:     strings.TrimSpace(req.CustomerID),
			Amount:         amount,
			Currency:       currency,
			ProductID:      strings.TrimSpace(req.ProductID),
			CreditsGranted: req.CreditsGranted,
			Status:         domain.PaymentStatusSucceeded,
			CreatedAt:      now,
		}
		inserted, err := s.repo.InsertPayment(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			result = domain.ApplyPaymentResult{AlreadyProcessed: true}
			return nil
		}

		if err := s.creditAccount(ctx, tx, req.UserID, req.CreditsGranted, req.CreditsGranted); err != nil {
			return err
		}

		txn := &domain.CreditTransaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Amount:      req.CreditsGranted,
			Type:        domain.TransactionTypePurchase,
			Description: purchaseDescription(req.CreditsGranted, record.ProductID),
			CreatedAt:   now,
		}
		if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		result = domain.ApplyPaymentResult{CreditsGranted: req.CreditsGranted}
		return nil
	})
	if err != nil {
		return domain.ApplyPaymentResult{}, err
	}

	if result.AlreadyProcessed {
		s.log.Info("duplicate payment delivery ignored",
			zap.String("payment_id", req.PaymentID),
			zap.String("user_id", req.UserID),
		)
		s.metrics.RecordPaymentDuplicate()
		return result, nil
	}

	s.log.Info("payment applied",
		zap.String("payment_id", req.PaymentID),
		zap.String("user_id", req.UserID),
		zap.Int64("credits_granted", req.CreditsGranted),
		zap.String("currency", currency),
	)
	s.metrics.RecordPaymentApplied(req.CreditsGranted)
	return result, nil
}

// SpendCredits debits a user's balance for a tool run. The decrement is a
// conditional in-store update guarded by balance >= credits, so concurrent
// spends for one user cannot overdraw the account.
func (s *Service) SpendCredits(ctx context.Context, req domain.SpendCreditsRequest) (domain.SpendCreditsResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.SpendCreditsResult{}, domain.ErrInvalidUser
	}
	if req.Credits <= 0 {
		return domain.SpendCreditsResult{}, domain.ErrInvalidCredits
	}

	var result domain.SpendCreditsResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		debited, err := s.repo.DebitBalance(ctx, tx, req.UserID, req.Credits)
		if err != nil {
			return err
		}
		if !debited {
			account, err := s.repo.FindAccount(ctx, tx, req.UserID)
			if err != nil {
				return err
			}
			if account == nil {
				return domain.ErrAccountNotFound
			}
			return domain.ErrInsufficientCredits
		}

		txn := &domain.CreditTransaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Amount:      req.Credits,
			Type:        domain.TransactionTypeUsage,
			Description: req.Description,
			CreatedAt:   s.clock.Now(),
		}
		if runID := strings.TrimSpace(req.RelatedRunID); runID != "" {
			txn.RelatedRunID = &runID
		}
		if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		account, err := s.repo.FindAccount(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}
		result = domain.SpendCreditsResult{Balance: account.Balance}
		return nil
	})
	if err != nil {
		return domain.SpendCreditsResult{}, err
	}

	s.metrics.RecordCreditsSpent(req.Credits)
	return result, nil
}

// GrantCredits credits a user outside the payment flow (bonus or refund).
// Grants do not count toward total_purchased.
func (s *Service) GrantCredits(ctx context.Context, req domain.GrantCreditsRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ErrInvalidUser
	}
	if req.Credits <= 0 {
		return domain.ErrInvalidCredits
	}
	switch req.Type {
	case domain.TransactionTypeBonus, domain.TransactionTypeRefund:
	default:
		return domain.ErrInvalidTransactionType
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.creditAccount(ctx, tx, req.UserID, req.Credits, 0); err != nil {
			return err
		}
		txn := &domain.CreditTransaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Amount:      req.Credits,
			Type:        req.Type,
			Description: req.Description,
			CreatedAt:   s.clock.Now(),
		}
		return s.repo.InsertTransaction(ctx, tx, txn)
	})
	if err != nil {
		return err
	}

	s.log.Info("credits granted",
		zap.String("user_id", req.UserID),
		zap.Int64("credits", req.Credits),
		zap.String("type", string(req.Type)),
	)
	s.metrics.RecordCreditsGranted(req.Credits)
	return nil
}

func (s *Service) GetAccount(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.FindAccount(ctx, s.db, userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListTransactions(ctx, s.db, userID, limit)
}

// creditAccount increments an existing account in place or creates one
// lazily on the first grant. A duplicate-key failure on the insert means a
// concurrent writer created the row first, so the increment is retried.
func (s *Service) creditAccount(ctx context.Context, tx *gorm.DB, userID string, credits, purchased int64) error {
	updated, err := s.repo.CreditBalance(ctx, tx, userID, credits, purchased)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	now := s.clock.Now()
	account := &domain.CreditAccount{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Balance:        credits,
		TotalPurchased: purchased,
		TotalUsed:      0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.repo.InsertAccount(ctx, tx, account)
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}

	updated, err = s.repo.CreditBalance(ctx, tx, userID, credits, purchased)
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrAccountNotFound
	}
	return nil
}

func purchaseDescription(credits int64, productID string) string {
	if productID == "" {
		return fmt.Sprintf("Purchased %d credits", credits)
	}
	return fmt.Sprintf("Purchased %d credits (%s)", credits, productID)
}
