// internal/services/investment_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/accounting"
	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/utils"
)

type InvestmentService struct {
	db    *gorm.DB
	guard *SettlementGuard
}

type RecordInvestmentRequest struct {
	PropertyID    uuid.UUID `json:"property_id" validate:"required"`
	WalletAddress string    `json:"wallet_address" validate:"required,wallet_address"`
	Tokens        int64     `json:"tokens" validate:"required,gt=0"`
	// Amount is the consideration paid on-chain. When omitted it is derived
	// from the property's token price.
	Amount       decimal.Decimal `json:"amount" validate:"gte=0"`
	SettlementID string          `json:"settlement_id" validate:"required,settlement_id"`
}

func NewInvestmentService(db *gorm.DB, guard *SettlementGuard) *InvestmentService {
	return &InvestmentService{db: db, guard: guard}
}

// RecordInvestment issues tokens of a listed property to userID against a
// primary-sale settlement. The boolean result is true when the settlement
// had already been recorded. A replay returns the position as it stands
// now: Tokens reflects later sales, OriginalTokens the quantity issued.
func (s *InvestmentService) RecordInvestment(ctx context.Context, userID string, req *RecordInvestmentRequest) (*models.Investment, bool, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, false, apperrors.Invalid(err)
	}
	if userID == "" {
		return nil, false, apperrors.ErrInvalidRequest.WithMessage("user id is required")
	}
	req.SettlementID = utils.NormalizeSettlementID(req.SettlementID)

	if investment, err := s.replay(ctx, userID, req); err != nil || investment != nil {
		return investment, investment != nil, err
	}

	investmentID := uuid.New()
	err := s.recordInvestmentTransaction(ctx, investmentID, userID, req)
	if lostRace(err) {
		investment, rerr := s.replay(ctx, userID, req)
		if rerr != nil {
			return nil, false, rerr
		}
		if investment == nil {
			return nil, false, apperrors.StoreUnavailable(err)
		}
		return investment, true, nil
	}
	if err != nil {
		return nil, false, classifyWriteError(err)
	}

	investment, err := s.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, false, err
	}

	logrus.WithFields(logrus.Fields{
		"investment_id": investment.ID,
		"property_id":   investment.PropertyID,
		"user_id":       userID,
		"tokens":        investment.Tokens,
		"settlement_id": investment.SettlementID,
	}).Info("Investment recorded")

	return investment, false, nil
}

func (s *InvestmentService) recordInvestmentTransaction(ctx context.Context, investmentID uuid.UUID, userID string, req *RecordInvestmentRequest) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.guard.Register(tx, &models.Settlement{
			SettlementID: req.SettlementID,
			Kind:         models.SettlementKindInvestment,
			PropertyID:   req.PropertyID,
			InvestmentID: &investmentID,
		}); err != nil {
			return err
		}

		property, err := lockProperty(tx, req.PropertyID)
		if err != nil {
			return err
		}
		if property.Status != models.PropertyStatusListed {
			return apperrors.ErrPropertyNotListed
		}

		issued, err := issuedTokens(tx, property.ID)
		if err != nil {
			return err
		}
		if err := accounting.ValidateInvestment(property.TotalTokens, issued, req.Tokens); err != nil {
			return err
		}

		amount := req.Amount
		if amount.IsZero() {
			amount = accounting.Consideration(accounting.PricePerToken(property.Price, property.TotalTokens), req.Tokens)
		}

		investment := &models.Investment{
			BaseModel:      models.BaseModel{ID: investmentID},
			PropertyID:     property.ID,
			UserID:         userID,
			WalletAddress:  utils.NormalizeWallet(req.WalletAddress),
			Tokens:         req.Tokens,
			OriginalTokens: req.Tokens,
			Amount:         amount,
			SettlementID:   req.SettlementID,
			Source:         models.InvestmentSourcePrimary,
		}
		if err := tx.Create(investment).Error; err != nil {
			return err
		}

		// The counter is rewritten from the ledger sum rather than
		// decremented, so an earlier drift cannot carry forward.
		remaining := accounting.AvailableTokens(property.TotalTokens, issued+req.Tokens)
		return tx.Model(&models.Property{}).
			Where("id = ?", property.ID).
			Update("available_tokens", remaining).Error
	})
}

// replay returns the investment recorded for the request's settlement, or
// nil when the settlement is new.
func (s *InvestmentService) replay(ctx context.Context, userID string, req *RecordInvestmentRequest) (*models.Investment, error) {
	settlement, err := s.guard.Lookup(ctx, req.SettlementID, models.SettlementKindInvestment)
	if err != nil || settlement == nil {
		return nil, err
	}
	if settlement.InvestmentID == nil {
		return nil, apperrors.ErrSettlementReused
	}

	investment, err := s.GetInvestment(ctx, *settlement.InvestmentID)
	if err != nil {
		return nil, err
	}
	if investment.UserID != userID {
		return nil, apperrors.ErrSettlementReused.WithMessage(
			"settlement %s was recorded for another investor", req.SettlementID)
	}

	entry := logrus.WithFields(logrus.Fields{
		"investment_id": investment.ID,
		"settlement_id": req.SettlementID,
		"user_id":       userID,
	})
	if investment.PropertyID != req.PropertyID || investment.OriginalTokens != req.Tokens {
		entry.WithFields(logrus.Fields{
			"requested_property_id": req.PropertyID,
			"requested_tokens":      req.Tokens,
		}).Warn("Settlement replayed with a different payload, returning the recorded investment")
	} else {
		entry.Info("Settlement replayed")
	}
	return investment, nil
}

func (s *InvestmentService) GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	var investment models.Investment
	err := readWithRetry(ctx, "get investment", func() error {
		return s.db.WithContext(ctx).First(&investment, "id = ?", id).Error
	})
	if database.IsNotFound(err) {
		return nil, apperrors.ErrInvestmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &investment, nil
}
