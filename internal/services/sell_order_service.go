// internal/services/sell_order_service.go
package services

import (
	"context"
	"errors"
	"time"

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

type SellOrderService struct {
	db    *gorm.DB
	guard *SettlementGuard
}

type CreateSellOrderRequest struct {
	PropertyID    uuid.UUID       `json:"property_id" validate:"required"`
	WalletAddress string          `json:"wallet_address" validate:"required,wallet_address"`
	Tokens        int64           `json:"tokens" validate:"required,gt=0"`
	PricePerToken decimal.Decimal `json:"price_per_token" validate:"gt=0"`
	SettlementID  string          `json:"settlement_id" validate:"required,settlement_id"`
}

type CompleteSellOrderRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,wallet_address"`
	SettlementID  string `json:"settlement_id" validate:"required,settlement_id"`
}

type SetChainRefRequest struct {
	ChainOrderID string `json:"chain_order_id" validate:"required,max=78"`
}

// SellOrderCompletion is the outcome of a completed sell order: the order
// itself and the buyer's new position.
type SellOrderCompletion struct {
	SellOrder  *models.SellOrder  `json:"sell_order"`
	Investment *models.Investment `json:"investment"`
}

func NewSellOrderService(db *gorm.DB, guard *SettlementGuard) *SellOrderService {
	return &SellOrderService{db: db, guard: guard}
}

// CreateSellOrder lists tokens the seller holds and has not already
// committed to another pending order.
func (s *SellOrderService) CreateSellOrder(ctx context.Context, sellerID string, req *CreateSellOrderRequest) (*models.SellOrder, bool, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, false, apperrors.Invalid(err)
	}
	if sellerID == "" {
		return nil, false, apperrors.ErrInvalidRequest.WithMessage("seller id is required")
	}
	req.SettlementID = utils.NormalizeSettlementID(req.SettlementID)

	if order, err := s.replayCreate(ctx, sellerID, req); err != nil || order != nil {
		return order, order != nil, err
	}

	orderID := uuid.New()
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.guard.Register(tx, &models.Settlement{
			SettlementID: req.SettlementID,
			Kind:         models.SettlementKindSellOrderCreate,
			PropertyID:   req.PropertyID,
			SellOrderID:  &orderID,
		}); err != nil {
			return err
		}

		// Locking the property serializes listings of the same asset, so two
		// orders cannot both pass the holdings check for the same tokens.
		property, err := lockProperty(tx, req.PropertyID)
		if err != nil {
			return err
		}
		if property.Status == models.PropertyStatusDraft {
			return apperrors.ErrPropertyNotListed
		}

		held, err := heldTokens(tx, property.ID, sellerID)
		if err != nil {
			return err
		}
		reserved, err := reservedTokens(tx, property.ID, sellerID)
		if err != nil {
			return err
		}
		if err := accounting.ValidateSellOrder(held, reserved, req.Tokens); err != nil {
			return err
		}

		order := &models.SellOrder{
			BaseModel:           models.BaseModel{ID: orderID},
			PropertyID:          property.ID,
			SellerUserID:        sellerID,
			SellerWalletAddress: utils.NormalizeWallet(req.WalletAddress),
			Tokens:              req.Tokens,
			PricePerToken:       req.PricePerToken.Round(accounting.PriceScale),
			Status:              models.SellOrderStatusPending,
			SettlementID:        req.SettlementID,
		}
		return tx.Create(order).Error
	})
	if lostRace(err) {
		order, rerr := s.replayCreate(ctx, sellerID, req)
		if rerr != nil {
			return nil, false, rerr
		}
		if order == nil {
			return nil, false, apperrors.StoreUnavailable(err)
		}
		return order, true, nil
	}
	if err != nil {
		return nil, false, classifyWriteError(err)
	}

	order, err := s.GetSellOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	logrus.WithFields(logrus.Fields{
		"sell_order_id": order.ID,
		"property_id":   order.PropertyID,
		"user_id":       sellerID,
		"tokens":        order.Tokens,
		"settlement_id": order.SettlementID,
	}).Info("Sell order created")

	return order, false, nil
}

func (s *SellOrderService) replayCreate(ctx context.Context, sellerID string, req *CreateSellOrderRequest) (*models.SellOrder, error) {
	settlement, err := s.guard.Lookup(ctx, req.SettlementID, models.SettlementKindSellOrderCreate)
	if err != nil || settlement == nil {
		return nil, err
	}
	if settlement.SellOrderID == nil {
		return nil, apperrors.ErrSettlementReused
	}

	order, err := s.GetSellOrder(ctx, *settlement.SellOrderID)
	if err != nil {
		return nil, err
	}
	if order.SellerUserID != sellerID {
		return nil, apperrors.ErrSettlementReused.WithMessage(
			"settlement %s was recorded for another seller", req.SettlementID)
	}

	logrus.WithFields(logrus.Fields{
		"sell_order_id": order.ID,
		"settlement_id": req.SettlementID,
	}).Info("Settlement replayed")
	return order, nil
}

// CompleteSellOrder transfers the order's tokens from the seller to the
// buyer. Seller positions are debited oldest first; the buyer receives a
// single new position priced at the order's unit price.
func (s *SellOrderService) CompleteSellOrder(ctx context.Context, orderID uuid.UUID, buyerID string, req *CompleteSellOrderRequest) (*SellOrderCompletion, bool, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, false, apperrors.Invalid(err)
	}
	if buyerID == "" {
		return nil, false, apperrors.ErrInvalidRequest.WithMessage("buyer id is required")
	}
	req.SettlementID = utils.NormalizeSettlementID(req.SettlementID)

	if completion, err := s.replayComplete(ctx, orderID, buyerID, req); err != nil || completion != nil {
		return completion, completion != nil, err
	}

	buyerInvestmentID := uuid.New()
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var order models.SellOrder
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperrors.ErrSellOrderNotFound
			}
			return err
		}
		if order.SellerUserID == buyerID {
			return apperrors.ErrSelfPurchase
		}
		if order.Status != models.SellOrderStatusPending {
			return apperrors.ErrSellOrderNotPending
		}

		if err := s.guard.Register(tx, &models.Settlement{
			SettlementID: req.SettlementID,
			Kind:         models.SettlementKindSellOrderComplete,
			PropertyID:   order.PropertyID,
			InvestmentID: &buyerInvestmentID,
			SellOrderID:  &order.ID,
		}); err != nil {
			return err
		}

		if _, err := lockProperty(tx, order.PropertyID); err != nil {
			return err
		}

		buyerWallet := utils.NormalizeWallet(req.WalletAddress)
		res := tx.Model(&models.SellOrder{}).
			Where("id = ? AND status = ?", order.ID, models.SellOrderStatusPending).
			Updates(map[string]interface{}{
				"status":                   models.SellOrderStatusCompleted,
				"buyer_user_id":            buyerID,
				"buyer_wallet_address":     buyerWallet,
				"completion_settlement_id": req.SettlementID,
				"buyer_investment_id":      buyerInvestmentID,
				"completed_at":             time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrSellOrderNotPending
		}

		if err := debitSeller(tx, &order); err != nil {
			return err
		}

		investment := &models.Investment{
			BaseModel:      models.BaseModel{ID: buyerInvestmentID},
			PropertyID:     order.PropertyID,
			UserID:         buyerID,
			WalletAddress:  buyerWallet,
			Tokens:         order.Tokens,
			OriginalTokens: order.Tokens,
			Amount:         accounting.Consideration(order.PricePerToken, order.Tokens),
			SettlementID:   req.SettlementID,
			Source:         models.InvestmentSourceTransfer,
			SellOrderID:    &order.ID,
		}
		return tx.Create(investment).Error
	})

	// A concurrent delivery of the same settlement may have completed the
	// order first; that is a replay, not a conflict.
	if lostRace(err) || errors.Is(err, apperrors.ErrSellOrderNotPending) {
		completion, rerr := s.replayComplete(ctx, orderID, buyerID, req)
		if rerr != nil {
			return nil, false, rerr
		}
		if completion != nil {
			return completion, true, nil
		}
		if lostRace(err) {
			return nil, false, apperrors.StoreUnavailable(err)
		}
	}
	if err != nil {
		return nil, false, classifyWriteError(err)
	}

	completion, err := s.loadCompletion(ctx, orderID, buyerInvestmentID)
	if err != nil {
		return nil, false, err
	}

	logrus.WithFields(logrus.Fields{
		"sell_order_id": orderID,
		"property_id":   completion.SellOrder.PropertyID,
		"seller":        completion.SellOrder.SellerUserID,
		"buyer":         buyerID,
		"tokens":        completion.SellOrder.Tokens,
		"settlement_id": req.SettlementID,
	}).Info("Sell order completed")

	return completion, false, nil
}

// debitSeller removes the order's tokens from the seller's positions, oldest
// first. Each debit is conditional on the position still covering it.
func debitSeller(tx *gorm.DB, order *models.SellOrder) error {
	var positions []models.Investment
	if err := lockForUpdate(tx).
		Where("property_id = ? AND user_id = ? AND tokens > 0", order.PropertyID, order.SellerUserID).
		Order("created_at ASC").Order("id ASC").
		Find(&positions).Error; err != nil {
		return err
	}

	lots := make([]accounting.Lot, 0, len(positions))
	for _, p := range positions {
		lots = append(lots, accounting.Lot{ID: p.ID.String(), Tokens: p.Tokens})
	}

	debits, err := accounting.AllocateTransfer(lots, order.Tokens)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"sell_order_id": order.ID,
			"seller":        order.SellerUserID,
			"held":          accounting.Sum(lots),
			"tokens":        order.Tokens,
		}).Error("Seller positions do not cover a pending sell order")
		return err
	}

	for _, d := range debits {
		res := tx.Model(&models.Investment{}).
			Where("id = ? AND tokens >= ?", d.ID, d.Tokens).
			Updates(map[string]interface{}{
				"tokens": gorm.Expr("tokens - ?", d.Tokens),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return apperrors.ErrSellerHoldingsShort
		}
	}
	return nil
}

func (s *SellOrderService) replayComplete(ctx context.Context, orderID uuid.UUID, buyerID string, req *CompleteSellOrderRequest) (*SellOrderCompletion, error) {
	settlement, err := s.guard.Lookup(ctx, req.SettlementID, models.SettlementKindSellOrderComplete)
	if err != nil || settlement == nil {
		return nil, err
	}
	if settlement.SellOrderID == nil || *settlement.SellOrderID != orderID || settlement.InvestmentID == nil {
		return nil, apperrors.ErrSettlementReused.WithMessage(
			"settlement %s completed a different sell order", req.SettlementID)
	}

	completion, err := s.loadCompletion(ctx, orderID, *settlement.InvestmentID)
	if err != nil {
		return nil, err
	}
	if completion.Investment.UserID != buyerID {
		return nil, apperrors.ErrSettlementReused.WithMessage(
			"settlement %s was recorded for another buyer", req.SettlementID)
	}

	logrus.WithFields(logrus.Fields{
		"sell_order_id": orderID,
		"settlement_id": req.SettlementID,
	}).Info("Settlement replayed")
	return completion, nil
}

func (s *SellOrderService) loadCompletion(ctx context.Context, orderID, investmentID uuid.UUID) (*SellOrderCompletion, error) {
	order, err := s.GetSellOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var investment models.Investment
	err = readWithRetry(ctx, "get buyer investment", func() error {
		return s.db.WithContext(ctx).First(&investment, "id = ?", investmentID).Error
	})
	if database.IsNotFound(err) {
		return nil, apperrors.ErrInvestmentNotFound
	}
	if err != nil {
		return nil, err
	}

	return &SellOrderCompletion{SellOrder: order, Investment: &investment}, nil
}

// CancelSellOrder withdraws a pending order. Only the seller may cancel, and
// only while no completion has won the order.
func (s *SellOrderService) CancelSellOrder(ctx context.Context, orderID uuid.UUID, requesterID string) (*models.SellOrder, error) {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var order models.SellOrder
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperrors.ErrSellOrderNotFound
			}
			return err
		}
		if order.SellerUserID != requesterID {
			return apperrors.ErrNotOwner
		}

		res := tx.Model(&models.SellOrder{}).
			Where("id = ? AND status = ?", order.ID, models.SellOrderStatusPending).
			Updates(map[string]interface{}{
				"status":       models.SellOrderStatusCancelled,
				"cancelled_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrSellOrderNotPending
		}
		return nil
	})
	if err != nil {
		return nil, classifyWriteError(err)
	}

	logrus.WithFields(logrus.Fields{
		"sell_order_id": orderID,
		"user_id":       requesterID,
	}).Info("Sell order cancelled")

	return s.GetSellOrder(ctx, orderID)
}

// SetChainRef records the on-chain order id for a pending order. Setting the
// same value again is a no-op.
func (s *SellOrderService) SetChainRef(ctx context.Context, orderID uuid.UUID, requesterID string, req *SetChainRefRequest) (*models.SellOrder, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Invalid(err)
	}

	res := s.db.WithContext(ctx).Model(&models.SellOrder{}).
		Where("id = ? AND seller_user_id = ? AND status = ? AND chain_order_id IS NULL",
			orderID, requesterID, models.SellOrderStatusPending).
		Update("chain_order_id", req.ChainOrderID)
	if res.Error != nil {
		return nil, classifyWriteError(res.Error)
	}

	order, err := s.GetSellOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 1 {
		return order, nil
	}

	switch {
	case order.SellerUserID != requesterID:
		return nil, apperrors.ErrNotOwner
	case order.ChainOrderID != nil && *order.ChainOrderID == req.ChainOrderID:
		return order, nil
	case order.Status != models.SellOrderStatusPending:
		return nil, apperrors.ErrSellOrderNotPending
	default:
		return nil, apperrors.ErrChainRefAlreadySet
	}
}

// GetChainRef returns the on-chain id of a pending order.
func (s *SellOrderService) GetChainRef(ctx context.Context, orderID uuid.UUID) (string, error) {
	order, err := s.GetSellOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != models.SellOrderStatusPending {
		return "", apperrors.ErrSellOrderNotPending
	}
	if order.ChainOrderID == nil {
		return "", apperrors.ErrChainRefNotFound
	}
	return *order.ChainOrderID, nil
}

func (s *SellOrderService) GetSellOrder(ctx context.Context, id uuid.UUID) (*models.SellOrder, error) {
	var order models.SellOrder
	err := readWithRetry(ctx, "get sell order", func() error {
		return s.db.WithContext(ctx).First(&order, "id = ?", id).Error
	})
	if database.IsNotFound(err) {
		return nil, apperrors.ErrSellOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
