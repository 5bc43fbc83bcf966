// internal/services/ledger.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/models"
)

// readRetryDelay is the pause before the single retry of a failed read.
var readRetryDelay = 50 * time.Millisecond

// lockForUpdate adds FOR UPDATE on dialects that support row locks. SQLite
// serializes writers at the database level instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// classifyWriteError turns whatever escaped a ledger transaction into a
// taxonomy error. Domain errors pass through, everything else is a store
// failure the caller may retry.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.StoreUnavailable(err)
}

// readWithRetry runs an idempotent read and repeats it once when it fails
// for a reason other than a domain error or a missing row.
func readWithRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || !retryableRead(err) {
		return err
	}

	logrus.WithError(err).WithField("op", op).Warn("Ledger read failed, retrying once")
	select {
	case <-ctx.Done():
		return apperrors.StoreUnavailable(ctx.Err())
	case <-time.After(readRetryDelay):
	}

	if err = fn(); err != nil && retryableRead(err) {
		return apperrors.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return err
}

func retryableRead(err error) bool {
	if database.IsNotFound(err) {
		return false
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.Retryable()
	}
	return true
}

// issuedTokens sums the tokens currently held across every position of a
// property. Transfers move tokens between positions, so only primary
// investments change this figure.
func issuedTokens(tx *gorm.DB, propertyID uuid.UUID) (int64, error) {
	var issued int64
	err := tx.Model(&models.Investment{}).
		Where("property_id = ?", propertyID).
		Select("COALESCE(SUM(tokens), 0)").
		Scan(&issued).Error
	return issued, err
}

func heldTokens(tx *gorm.DB, propertyID uuid.UUID, userID string) (int64, error) {
	var held int64
	err := tx.Model(&models.Investment{}).
		Where("property_id = ? AND user_id = ?", propertyID, userID).
		Select("COALESCE(SUM(tokens), 0)").
		Scan(&held).Error
	return held, err
}

// reservedTokens sums tokens the seller has committed to pending orders.
func reservedTokens(tx *gorm.DB, propertyID uuid.UUID, userID string) (int64, error) {
	var reserved int64
	err := tx.Model(&models.SellOrder{}).
		Where("property_id = ? AND seller_user_id = ? AND status = ?", propertyID, userID, models.SellOrderStatusPending).
		Select("COALESCE(SUM(tokens), 0)").
		Scan(&reserved).Error
	return reserved, err
}

func lockProperty(tx *gorm.DB, propertyID uuid.UUID) (*models.Property, error) {
	var property models.Property
	if err := lockForUpdate(tx).First(&property, "id = ?", propertyID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	return &property, nil
}
