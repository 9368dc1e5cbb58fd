// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/datamartlabs/datamart-backend/internal/bank"
	"github.com/datamartlabs/datamart-backend/internal/config"
	"github.com/datamartlabs/datamart-backend/internal/database"
	"github.com/datamartlabs/datamart-backend/internal/models"
	"github.com/datamartlabs/datamart-backend/internal/utils"
)

// PaymentService handles wallet top-ups: card payments through stripe
// that credit the principal's marketplace balance. Marketplace
// purchases themselves never touch stripe, they settle on the internal
// bank.
type PaymentService struct {
	db   *gorm.DB
	cfg  *config.Config
	bank *bank.Bank
}

type CreateDepositRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type DepositIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
}

type ConfirmDepositRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, bnk *bank.Bank) *PaymentService {
	// Initialize Stripe
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		db:   db,
		cfg:  cfg,
		bank: bnk,
	}
}

// CreateDepositIntent opens a stripe payment intent for a top-up and
// records the pending deposit.
func (s *PaymentService) CreateDepositIntent(principal string, req *CreateDepositRequest) (*DepositIntentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if req.Amount < s.cfg.Payment.MinimumDeposit {
		return nil, fmt.Errorf("minimum deposit is %d", s.cfg.Payment.MinimumDeposit)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String("usd"),
	}
	params.AddMetadata("principal", principal)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	deposit := &models.Deposit{
		Principal:       principal,
		Amount:          req.Amount,
		PaymentIntentID: pi.ID,
		Status:          models.DepositStatusPending,
	}
	if err := s.db.Create(deposit).Error; err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	return &DepositIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Status:       string(pi.Status),
	}, nil
}

// ConfirmDeposit checks the intent with stripe and credits the bank
// exactly once per intent.
func (s *PaymentService) ConfirmDeposit(principal string, req *ConfirmDepositRequest) (*models.Deposit, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	pi, err := paymentintent.Get(req.PaymentIntentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	var deposit models.Deposit
	if err := s.db.Where("payment_intent_id = ?", req.PaymentIntentID).First(&deposit).Error; err != nil {
		return nil, errors.New("deposit not found")
	}

	if deposit.Principal != principal {
		return nil, errors.New("deposit belongs to another account")
	}
	if deposit.Status == models.DepositStatusCompleted {
		return &deposit, nil
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		now := time.Now()
		err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
			if err := tx.Model(&deposit).Updates(map[string]interface{}{
				"status":       models.DepositStatusCompleted,
				"completed_at": &now,
			}).Error; err != nil {
				return err
			}

			if err := s.bank.Deposit(principal, deposit.Amount); err != nil {
				return err
			}

			account := models.Account{
				Principal: principal,
				Balance:   s.bank.Balance(principal),
			}
			return tx.Save(&account).Error
		})
		if err != nil {
			return nil, fmt.Errorf("failed to complete deposit: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"principal": principal,
			"amount":    deposit.Amount,
		}).Info("Deposit completed")

	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		// Still pending on the stripe side; nothing to do yet.

	default:
		s.db.Model(&deposit).Update("status", models.DepositStatusFailed)
		return nil, errors.New("payment did not succeed")
	}

	s.db.Where("payment_intent_id = ?", req.PaymentIntentID).First(&deposit)
	return &deposit, nil
}

// Balance reports a principal's current marketplace balance.
func (s *PaymentService) Balance(principal string) int64 {
	return s.bank.Balance(principal)
}

// GetDepositHistory lists a principal's top-ups, newest first.
func (s *PaymentService) GetDepositHistory(principal string, params utils.PaginationParams) ([]models.Deposit, int64, error) {
	query := s.db.Model(&models.Deposit{}).Where("principal = ?", principal)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count deposits: %w", err)
	}

	var deposits []models.Deposit
	if err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Limit).Limit(params.Limit).
		Find(&deposits).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch deposits: %w", err)
	}

	return deposits, total, nil
}
