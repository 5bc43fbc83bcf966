// internal/services/settlement_guard.go
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/utils"
)

// errSettlementTaken means a concurrent transaction registered the same
// settlement first. It never leaves this package: callers resolve it as a
// replay.
var errSettlementTaken = errors.New("settlement already registered")

// SettlementGuard deduplicates settlements. Lookup runs before a
// reconciliation transaction; Register runs as the transaction's first
// write so the uniqueness check and the ledger rows commit together.
type SettlementGuard struct {
	db *gorm.DB
}

func NewSettlementGuard(db *gorm.DB) *SettlementGuard {
	return &SettlementGuard{db: db}
}

// Lookup returns the registered settlement, or nil when it was never seen.
// A settlement recorded for another kind of operation is a conflict.
func (g *SettlementGuard) Lookup(ctx context.Context, settlementID string, kind models.SettlementKind) (*models.Settlement, error) {
	var settlement models.Settlement
	err := readWithRetry(ctx, "settlement lookup", func() error {
		return g.db.WithContext(ctx).First(&settlement, "settlement_id = ?", settlementID).Error
	})
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyWriteError(err)
	}
	if settlement.Kind != kind {
		return nil, apperrors.ErrSettlementReused.WithMessage(
			"settlement %s was recorded as %s", settlementID, settlement.Kind)
	}
	return &settlement, nil
}

// Register claims the settlement inside tx.
func (g *SettlementGuard) Register(tx *gorm.DB, settlement *models.Settlement) error {
	if settlement.VerificationStatus == "" {
		settlement.VerificationStatus = models.VerificationStatusPending
	}
	if err := tx.Create(settlement).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errSettlementTaken
		}
		return fmt.Errorf("failed to register settlement: %w", err)
	}
	return nil
}

// Get loads a registered settlement regardless of kind.
func (g *SettlementGuard) Get(ctx context.Context, settlementID string) (*models.Settlement, error) {
	settlementID = utils.NormalizeSettlementID(settlementID)
	var settlement models.Settlement
	err := readWithRetry(ctx, "settlement get", func() error {
		return g.db.WithContext(ctx).First(&settlement, "settlement_id = ?", settlementID).Error
	})
	if database.IsNotFound(err) {
		return nil, apperrors.ErrSettlementNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// lostRace reports whether a failed transaction should be re-resolved as a
// replay: either the registry insert collided or another unique settlement
// column did.
func lostRace(err error) bool {
	return errors.Is(err, errSettlementTaken) || database.IsDuplicateKey(err)
}
