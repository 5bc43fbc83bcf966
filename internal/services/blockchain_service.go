// internal/services/blockchain_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/config"
	"github.com/estatechain/ledger-backend/internal/models"
)

// ChainReader is the subset of an Ethereum client the verifier needs.
type ChainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// DialChain connects to the configured JSON-RPC endpoint.
func DialChain(ctx context.Context, cfg config.BlockchainConfig) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s node: %w", cfg.Network, err)
	}
	return client, nil
}

// ConnectBlockchainService dials the chain and builds a verifier on top of
// it. The returned close func releases the RPC connection.
func ConnectBlockchainService(ctx context.Context, db *gorm.DB, cfg config.BlockchainConfig) (*BlockchainService, func(), error) {
	client, err := DialChain(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewBlockchainService(db, client, cfg), client.Close, nil
}

// BlockchainService cross-checks registered settlements against their
// on-chain transactions. It only annotates the settlement registry: a
// reverted settlement is reported, never reversed in the ledger.
type BlockchainService struct {
	db            *gorm.DB
	chain         ChainReader
	confirmations uint64
	batchSize     int
	timeout       time.Duration
}

type VerificationSummary struct {
	Checked      int `json:"checked"`
	Confirmed    int `json:"confirmed"`
	Reverted     int `json:"reverted"`
	Unverifiable int `json:"unverifiable"`
	StillPending int `json:"still_pending"`
}

func NewBlockchainService(db *gorm.DB, chain ChainReader, cfg config.BlockchainConfig) *BlockchainService {
	s := &BlockchainService{
		db:        db,
		chain:     chain,
		batchSize: cfg.VerifyBatchSize,
		timeout:   time.Duration(cfg.RequestTimeoutSecs) * time.Second,
	}
	if cfg.Confirmations > 0 {
		s.confirmations = uint64(cfg.Confirmations)
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	return s
}

// VerifyPending checks the oldest pending settlements, one batch per call.
func (s *BlockchainService) VerifyPending(ctx context.Context) (*VerificationSummary, error) {
	var pending []models.Settlement
	if err := s.db.WithContext(ctx).
		Where("verification_status = ?", models.VerificationStatusPending).
		Order("created_at ASC").
		Limit(s.batchSize).
		Find(&pending).Error; err != nil {
		return nil, classifyWriteError(fmt.Errorf("failed to load pending settlements: %w", err))
	}

	summary := &VerificationSummary{}
	if len(pending) == 0 {
		return summary, nil
	}

	head, err := s.blockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain head: %w", err)
	}

	for _, settlement := range pending {
		if ctx.Err() != nil {
			break
		}
		summary.Checked++

		status, note, err := s.check(ctx, settlement.SettlementID, head)
		if err != nil {
			logrus.WithError(err).WithField("settlement_id", settlement.SettlementID).
				Warn("Settlement verification failed, will retry")
			summary.StillPending++
			continue
		}

		switch status {
		case models.VerificationStatusPending:
			summary.StillPending++
			continue
		case models.VerificationStatusConfirmed:
			summary.Confirmed++
		case models.VerificationStatusReverted:
			summary.Reverted++
			logrus.WithFields(logrus.Fields{
				"settlement_id": settlement.SettlementID,
				"kind":          settlement.Kind,
				"property_id":   settlement.PropertyID,
			}).Error("Settlement transaction reverted on chain")
		case models.VerificationStatusUnverifiable:
			summary.Unverifiable++
		}

		if err := s.mark(ctx, settlement.SettlementID, status, note); err != nil {
			return summary, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"checked":      summary.Checked,
		"confirmed":    summary.Confirmed,
		"reverted":     summary.Reverted,
		"unverifiable": summary.Unverifiable,
	}).Info("Settlement verification pass finished")

	return summary, nil
}

// check resolves one settlement. A transaction the node does not know yet,
// or one short of the confirmation depth, stays pending.
func (s *BlockchainService) check(ctx context.Context, settlementID string, head uint64) (models.VerificationStatus, string, error) {
	raw, err := hexutil.Decode(settlementID)
	if err != nil || len(raw) != common.HashLength {
		return models.VerificationStatusUnverifiable, "settlement id is not a transaction hash", nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	receipt, err := s.chain.TransactionReceipt(rctx, common.BytesToHash(raw))
	if errors.Is(err, ethereum.NotFound) {
		return models.VerificationStatusPending, "", nil
	}
	if err != nil {
		return "", "", err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return models.VerificationStatusReverted, fmt.Sprintf("reverted in block %s", receipt.BlockNumber), nil
	}
	if receipt.BlockNumber == nil || !receipt.BlockNumber.IsUint64() {
		return models.VerificationStatusPending, "", nil
	}

	mined := receipt.BlockNumber.Uint64()
	if head < mined || head-mined+1 < s.confirmations {
		return models.VerificationStatusPending, "", nil
	}
	return models.VerificationStatusConfirmed, fmt.Sprintf("mined in block %d", mined), nil
}

func (s *BlockchainService) blockNumber(ctx context.Context) (uint64, error) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.chain.BlockNumber(rctx)
}

// mark only moves a settlement out of PENDING, so concurrent verifier runs
// cannot overwrite each other's verdicts.
func (s *BlockchainService) mark(ctx context.Context, settlementID string, status models.VerificationStatus, note string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&models.Settlement{}).
		Where("settlement_id = ? AND verification_status = ?", settlementID, models.VerificationStatusPending).
		Updates(map[string]interface{}{
			"verification_status": status,
			"verification_note":   note,
			"verified_at":         now,
		}).Error
	if err != nil {
		return classifyWriteError(fmt.Errorf("failed to mark settlement %s: %w", settlementID, err))
	}
	return nil
}
