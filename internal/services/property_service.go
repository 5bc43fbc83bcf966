// internal/services/property_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/accounting"
	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/utils"
)

type PropertyService struct {
	db *gorm.DB
}

type CreatePropertyRequest struct {
	Name            string          `json:"name" validate:"required,min=3,max=255"`
	Location        string          `json:"location" validate:"max=255"`
	Description     string          `json:"description"`
	PropertyType    string          `json:"property_type" validate:"max=50"`
	Images          []string        `json:"images" validate:"omitempty,dive,url"`
	Price           decimal.Decimal `json:"price" validate:"gt=0"`
	TotalTokens     int64           `json:"total_tokens" validate:"required,gt=0"`
	ExpectedReturn  decimal.Decimal `json:"expected_return" validate:"gte=0,lte=1000"`
	TokenAddress    string          `json:"token_address" validate:"omitempty,wallet_address"`
	ChainPropertyID string          `json:"chain_property_id" validate:"max=78"`
}

// UpdatePropertyRequest changes descriptive fields at any time; price and
// total_tokens only while the property is still a draft.
type UpdatePropertyRequest struct {
	Name            *string          `json:"name,omitempty" validate:"omitempty,min=3,max=255"`
	Location        *string          `json:"location,omitempty" validate:"omitempty,max=255"`
	Description     *string          `json:"description,omitempty"`
	PropertyType    *string          `json:"property_type,omitempty" validate:"omitempty,max=50"`
	Images          []string         `json:"images,omitempty" validate:"omitempty,dive,url"`
	ExpectedReturn  *decimal.Decimal `json:"expected_return,omitempty"`
	TokenAddress    *string          `json:"token_address,omitempty" validate:"omitempty,wallet_address"`
	ChainPropertyID *string          `json:"chain_property_id,omitempty" validate:"omitempty,max=78"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	TotalTokens     *int64           `json:"total_tokens,omitempty" validate:"omitempty,gt=0"`
}

type PropertySearchParams struct {
	utils.PaginationParams
	Status       *models.PropertyStatus
	PropertyType string
	Search       string
}

// PropertyView is a property with its derived token figures.
type PropertyView struct {
	models.Property
	IssuedTokens  int64           `json:"issued_tokens"`
	PricePerToken decimal.Decimal `json:"price_per_token"`
}

func NewPropertyService(db *gorm.DB) *PropertyService {
	return &PropertyService{db: db}
}

func newPropertyView(p models.Property) PropertyView {
	return PropertyView{
		Property:      p,
		IssuedTokens:  p.IssuedTokens(),
		PricePerToken: accounting.PricePerToken(p.Price, p.TotalTokens),
	}
}

func (s *PropertyService) CreateProperty(ctx context.Context, req *CreatePropertyRequest) (*PropertyView, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Invalid(err)
	}

	property := &models.Property{
		Name:            req.Name,
		Location:        req.Location,
		Description:     req.Description,
		PropertyType:    req.PropertyType,
		Images:          datatypes.JSONSlice[string](req.Images),
		Price:           req.Price.Round(2),
		TotalTokens:     req.TotalTokens,
		AvailableTokens: 0,
		ExpectedReturn:  req.ExpectedReturn.Round(2),
		TokenAddress:    utils.NormalizeWallet(req.TokenAddress),
		ChainPropertyID: req.ChainPropertyID,
		Status:          models.PropertyStatusDraft,
	}
	if property.Images == nil {
		property.Images = datatypes.JSONSlice[string]{}
	}

	if err := s.db.WithContext(ctx).Create(property).Error; err != nil {
		return nil, classifyWriteError(fmt.Errorf("failed to create property: %w", err))
	}

	logrus.WithFields(logrus.Fields{
		"property_id":  property.ID,
		"total_tokens": property.TotalTokens,
	}).Info("Property created")

	return s.GetProperty(ctx, property.ID)
}

func (s *PropertyService) UpdateProperty(ctx context.Context, id uuid.UUID, req *UpdatePropertyRequest) (*PropertyView, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Invalid(err)
	}
	if req.Price != nil && !req.Price.IsPositive() {
		return nil, apperrors.ErrInvalidPrice
	}

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		property, err := lockProperty(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Location != nil {
			updates["location"] = *req.Location
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.PropertyType != nil {
			updates["property_type"] = *req.PropertyType
		}
		if req.Images != nil {
			updates["images"] = datatypes.JSONSlice[string](req.Images)
		}
		if req.ExpectedReturn != nil {
			updates["expected_return"] = req.ExpectedReturn.Round(2)
		}
		if req.TokenAddress != nil {
			updates["token_address"] = utils.NormalizeWallet(*req.TokenAddress)
		}
		if req.ChainPropertyID != nil {
			updates["chain_property_id"] = *req.ChainPropertyID
		}

		// Supply and valuation are frozen once investors can hold tokens.
		if req.Price != nil || req.TotalTokens != nil {
			if property.Status != models.PropertyStatusDraft {
				return apperrors.ErrPropertyNotEditable.WithMessage(
					"price and total_tokens are fixed once a property is listed")
			}
			if req.Price != nil {
				updates["price"] = req.Price.Round(2)
			}
			if req.TotalTokens != nil {
				updates["total_tokens"] = *req.TotalTokens
			}
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Property{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, classifyWriteError(err)
	}

	return s.GetProperty(ctx, id)
}

// ListProperty opens a draft for investment with its full supply available.
func (s *PropertyService) ListProperty(ctx context.Context, id uuid.UUID) (*PropertyView, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ? AND status = ?", id, models.PropertyStatusDraft).
		Updates(map[string]interface{}{
			"status":           models.PropertyStatusListed,
			"available_tokens": gorm.Expr("total_tokens"),
			"listed_at":        now,
		})
	if res.Error != nil {
		return nil, classifyWriteError(res.Error)
	}

	view, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && view.Status != models.PropertyStatusListed {
		return nil, apperrors.ErrPropertyNotEditable.WithMessage(
			"only draft properties can be listed, property is %s", view.Status)
	}

	logrus.WithField("property_id", id).Info("Property listed")
	return view, nil
}

// DelistProperty closes a listed property to new investment. Existing
// positions and sell orders are unaffected.
func (s *PropertyService) DelistProperty(ctx context.Context, id uuid.UUID) (*PropertyView, error) {
	res := s.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ? AND status = ?", id, models.PropertyStatusListed).
		Updates(map[string]interface{}{
			"status":      models.PropertyStatusDelisted,
			"delisted_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, classifyWriteError(res.Error)
	}

	view, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && view.Status != models.PropertyStatusDelisted {
		return nil, apperrors.ErrPropertyNotEditable.WithMessage(
			"only listed properties can be delisted, property is %s", view.Status)
	}

	logrus.WithField("property_id", id).Info("Property delisted")
	return view, nil
}

func (s *PropertyService) GetProperty(ctx context.Context, id uuid.UUID) (*PropertyView, error) {
	var property models.Property
	err := readWithRetry(ctx, "get property", func() error {
		return s.db.WithContext(ctx).First(&property, "id = ?", id).Error
	})
	if database.IsNotFound(err) {
		return nil, apperrors.ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}

	view := newPropertyView(property)
	return &view, nil
}

func (s *PropertyService) SearchProperties(ctx context.Context, params PropertySearchParams) ([]PropertyView, int64, error) {
	var (
		properties []models.Property
		total      int64
	)

	err := readWithRetry(ctx, "search properties", func() error {
		query := s.db.WithContext(ctx).Model(&models.Property{})

		if params.Status != nil {
			query = query.Where("status = ?", *params.Status)
		} else {
			query = query.Where("status = ?", models.PropertyStatusListed)
		}
		if params.PropertyType != "" {
			query = query.Where("property_type = ?", params.PropertyType)
		}
		if params.Search != "" {
			term := "%" + strings.ToLower(params.Search) + "%"
			query = query.Where("LOWER(name) LIKE ? OR LOWER(location) LIKE ?", term, term)
		}

		if err := query.Count(&total).Error; err != nil {
			return err
		}

		allowedSortFields := []string{"created_at", "listed_at", "price", "name", "available_tokens"}
		query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
		query = utils.ApplyPagination(query, params.PaginationParams)
		return query.Find(&properties).Error
	})
	if err != nil {
		return nil, 0, err
	}

	views := make([]PropertyView, 0, len(properties))
	for _, p := range properties {
		views = append(views, newPropertyView(p))
	}
	return views, total, nil
}
