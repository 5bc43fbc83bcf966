// internal/services/portfolio_service.go
package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/accounting"
	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/utils"
)

// PortfolioService serves read-side views of the ledger. Every view reflects
// the last committed state at the store's default isolation; none of them
// take locks.
type PortfolioService struct {
	db *gorm.DB
}

// Holding is a user's aggregate position in one property.
type Holding struct {
	PropertyID     uuid.UUID             `json:"property_id"`
	PropertyName   string                `json:"property_name"`
	Location       string                `json:"location"`
	PropertyStatus models.PropertyStatus `json:"property_status"`
	Tokens         int64                 `json:"tokens"`
	ReservedTokens int64                 `json:"reserved_tokens"`
	TokenValue     decimal.Decimal       `json:"token_value"`
	PositionValue  decimal.Decimal       `json:"position_value"`
	InvestedAmount decimal.Decimal       `json:"invested_amount"`
	ExpectedReturn decimal.Decimal       `json:"expected_return"`
	History        []models.Investment   `json:"history"`
}

type AvailabilitySnapshot struct {
	PropertyID      uuid.UUID             `json:"property_id"`
	Status          models.PropertyStatus `json:"status"`
	TotalTokens     int64                 `json:"total_tokens"`
	IssuedTokens    int64                 `json:"issued_tokens"`
	AvailableTokens int64                 `json:"available_tokens"`
	ListedForSale   int64                 `json:"listed_for_sale"`
	OpenSellOrders  int64                 `json:"open_sell_orders"`
	PricePerToken   decimal.Decimal       `json:"price_per_token"`
	AsOf            time.Time             `json:"as_of"`
}

// Listing is an open sell order as shown on the marketplace.
type Listing struct {
	models.SellOrder
	TotalPrice decimal.Decimal `json:"total_price"`
}

type InvestmentFilter struct {
	UserID        string
	WalletAddress string
	PropertyID    *uuid.UUID
}

type MarketplaceFilter struct {
	utils.PaginationParams
	PropertyID *uuid.UUID
	// RequesterID hides the requester's own orders. Empty for anonymous
	// callers.
	RequesterID string
}

func NewPortfolioService(db *gorm.DB) *PortfolioService {
	return &PortfolioService{db: db}
}

// Holdings groups a user's positions by property. Properties the user has
// fully sold are omitted; their history is still available through
// Transactions.
func (s *PortfolioService) Holdings(ctx context.Context, userID string) ([]Holding, error) {
	var investments []models.Investment
	var pending []models.SellOrder

	err := readWithRetry(ctx, "holdings", func() error {
		investments, pending = nil, nil
		db := s.db.WithContext(ctx)
		if err := db.Preload("Property").
			Where("user_id = ?", userID).
			Order("created_at ASC").Order("id ASC").
			Find(&investments).Error; err != nil {
			return err
		}
		return db.Where("seller_user_id = ? AND status = ?", userID, models.SellOrderStatusPending).
			Find(&pending).Error
	})
	if err != nil {
		return nil, err
	}

	reserved := map[uuid.UUID]int64{}
	for _, o := range pending {
		reserved[o.PropertyID] += o.Tokens
	}

	byProperty := map[uuid.UUID]*Holding{}
	var order []uuid.UUID
	for _, inv := range investments {
		h, ok := byProperty[inv.PropertyID]
		if !ok {
			h = &Holding{
				PropertyID:     inv.PropertyID,
				ReservedTokens: reserved[inv.PropertyID],
				InvestedAmount: decimal.Zero,
			}
			if inv.Property != nil {
				h.PropertyName = inv.Property.Name
				h.Location = inv.Property.Location
				h.PropertyStatus = inv.Property.Status
				h.ExpectedReturn = inv.Property.ExpectedReturn
				h.TokenValue = accounting.PricePerToken(inv.Property.Price, inv.Property.TotalTokens)
			}
			byProperty[inv.PropertyID] = h
			order = append(order, inv.PropertyID)
		}
		h.Tokens += inv.Tokens
		h.InvestedAmount = h.InvestedAmount.Add(inv.Amount)

		entry := inv
		entry.Property = nil
		h.History = append(h.History, entry)
	}

	holdings := make([]Holding, 0, len(order))
	for _, id := range order {
		h := byProperty[id]
		if h.Tokens <= 0 {
			continue
		}
		h.PositionValue = h.TokenValue.Mul(decimal.NewFromInt(h.Tokens))
		holdings = append(holdings, *h)
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].Tokens > holdings[j].Tokens
	})
	return holdings, nil
}

// Transactions lists every position a user has had in one property, oldest
// first, including positions later sold down to zero.
func (s *PortfolioService) Transactions(ctx context.Context, userID string, propertyID uuid.UUID) ([]models.Investment, error) {
	var investments []models.Investment
	err := readWithRetry(ctx, "transactions", func() error {
		return s.db.WithContext(ctx).
			Where("user_id = ? AND property_id = ?", userID, propertyID).
			Order("created_at ASC").Order("id ASC").
			Find(&investments).Error
	})
	return investments, err
}

// Investments lists positions by owner or wallet, newest first.
func (s *PortfolioService) Investments(ctx context.Context, filter InvestmentFilter, params utils.PaginationParams) ([]models.Investment, int64, error) {
	if filter.UserID == "" && filter.WalletAddress == "" {
		return nil, 0, apperrors.ErrInvalidRequest.WithMessage("user or wallet filter is required")
	}

	var (
		investments []models.Investment
		total       int64
	)
	err := readWithRetry(ctx, "investments", func() error {
		query := s.db.WithContext(ctx).Model(&models.Investment{})
		if filter.UserID != "" {
			query = query.Where("user_id = ?", filter.UserID)
		}
		if filter.WalletAddress != "" {
			query = query.Where("wallet_address = ?", utils.NormalizeWallet(filter.WalletAddress))
		}
		if filter.PropertyID != nil {
			query = query.Where("property_id = ?", *filter.PropertyID)
		}
		if err := query.Count(&total).Error; err != nil {
			return err
		}

		query = utils.ApplySort(query, params, []string{"created_at", "tokens", "amount"})
		query = utils.ApplyPagination(query, params)
		return query.Preload("Property").Find(&investments).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return investments, total, nil
}

// Availability reports supply figures computed from the ledger rows rather
// than the denormalized counter.
func (s *PortfolioService) Availability(ctx context.Context, propertyID uuid.UUID) (*AvailabilitySnapshot, error) {
	var (
		property models.Property
		issued   int64
		listed   struct {
			Tokens int64
			Orders int64
		}
	)

	err := readWithRetry(ctx, "availability", func() error {
		db := s.db.WithContext(ctx)
		if err := db.First(&property, "id = ?", propertyID).Error; err != nil {
			return err
		}
		var err error
		if issued, err = issuedTokens(db, propertyID); err != nil {
			return err
		}
		return db.Model(&models.SellOrder{}).
			Where("property_id = ? AND status = ?", propertyID, models.SellOrderStatusPending).
			Select("COALESCE(SUM(tokens), 0) AS tokens, COUNT(*) AS orders").
			Scan(&listed).Error
	})
	if database.IsNotFound(err) {
		return nil, apperrors.ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}

	available := int64(0)
	if property.Status == models.PropertyStatusListed {
		available = accounting.AvailableTokens(property.TotalTokens, issued)
	}

	return &AvailabilitySnapshot{
		PropertyID:      property.ID,
		Status:          property.Status,
		TotalTokens:     property.TotalTokens,
		IssuedTokens:    issued,
		AvailableTokens: available,
		ListedForSale:   listed.Tokens,
		OpenSellOrders:  listed.Orders,
		PricePerToken:   accounting.PricePerToken(property.Price, property.TotalTokens),
		AsOf:            time.Now().UTC(),
	}, nil
}

// Marketplace lists pending sell orders, excluding the requester's own.
func (s *PortfolioService) Marketplace(ctx context.Context, filter MarketplaceFilter) ([]Listing, int64, error) {
	var (
		orders []models.SellOrder
		total  int64
	)
	err := readWithRetry(ctx, "marketplace", func() error {
		query := s.db.WithContext(ctx).Model(&models.SellOrder{}).
			Where("status = ?", models.SellOrderStatusPending)
		if filter.RequesterID != "" {
			query = query.Where("seller_user_id <> ?", filter.RequesterID)
		}
		if filter.PropertyID != nil {
			query = query.Where("property_id = ?", *filter.PropertyID)
		}
		if err := query.Count(&total).Error; err != nil {
			return err
		}

		query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "price_per_token", "tokens"})
		query = utils.ApplyPagination(query, filter.PaginationParams)
		return query.Preload("Property").Find(&orders).Error
	})
	if err != nil {
		return nil, 0, err
	}

	listings := make([]Listing, 0, len(orders))
	for _, o := range orders {
		listings = append(listings, Listing{
			SellOrder:  o,
			TotalPrice: accounting.Consideration(o.PricePerToken, o.Tokens),
		})
	}
	return listings, total, nil
}

// SellerOrders lists a seller's orders in every status, newest first.
func (s *PortfolioService) SellerOrders(ctx context.Context, sellerID string, status *models.SellOrderStatus, params utils.PaginationParams) ([]models.SellOrder, int64, error) {
	var (
		orders []models.SellOrder
		total  int64
	)
	err := readWithRetry(ctx, "seller orders", func() error {
		query := s.db.WithContext(ctx).Model(&models.SellOrder{}).
			Where("seller_user_id = ?", sellerID)
		if status != nil {
			query = query.Where("status = ?", *status)
		}
		if err := query.Count(&total).Error; err != nil {
			return err
		}

		query = utils.ApplySort(query, params, []string{"created_at", "completed_at", "tokens"})
		query = utils.ApplyPagination(query, params)
		return query.Preload("Property").Find(&orders).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
