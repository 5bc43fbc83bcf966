package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/suite"

	"github.com/estatechain/ledger-backend/internal/config"
	"github.com/estatechain/ledger-backend/internal/models"
)

type fakeChain struct {
	mu       sync.Mutex
	head     uint64
	headErr  error
	receipts map[common.Hash]*types.Receipt
	errs     map[common.Hash]error
	lookups  int
}

func newFakeChain(head uint64) *fakeChain {
	return &fakeChain{
		head:     head,
		receipts: map[common.Hash]*types.Receipt{},
		errs:     map[common.Hash]error{},
	}
}

func (c *fakeChain) mined(id string, block int64, status uint64) {
	c.receipts[common.HexToHash(id)] = &types.Receipt{Status: status, BlockNumber: big.NewInt(block)}
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if err, ok := c.errs[hash]; ok {
		return nil, err
	}
	if r, ok := c.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (c *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.head, c.headErr
}

func txHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

type BlockchainServiceSuite struct {
	ledgerSuite
	chain    *fakeChain
	verifier *BlockchainService
}

func TestBlockchainService(t *testing.T) {
	suite.Run(t, new(BlockchainServiceSuite))
}

func (s *BlockchainServiceSuite) SetupTest() {
	s.ledgerSuite.SetupTest()
	s.chain = newFakeChain(100)
	s.verifier = NewBlockchainService(s.db, s.chain, config.BlockchainConfig{Confirmations: 12})
}

func (s *BlockchainServiceSuite) settlement(id string) models.Settlement {
	settlement, err := s.guard.Get(s.ctx, id)
	s.Require().NoError(err)
	return *settlement
}

func (s *BlockchainServiceSuite) TestVerdicts() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 10, txHash(1))
	s.invest(propertyID, "alice", walletAlice, 10, txHash(2))
	s.invest(propertyID, "alice", walletAlice, 10, txHash(3))
	s.invest(propertyID, "alice", walletAlice, 10, txHash(4))
	s.invest(propertyID, "alice", walletAlice, 10, "bank-transfer-991")

	s.chain.mined(txHash(1), 80, types.ReceiptStatusSuccessful)
	s.chain.mined(txHash(2), 85, types.ReceiptStatusFailed)
	s.chain.mined(txHash(3), 95, types.ReceiptStatusSuccessful)

	summary, err := s.verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(&VerificationSummary{
		Checked:      5,
		Confirmed:    1,
		Reverted:     1,
		Unverifiable: 1,
		StillPending: 2,
	}, summary)

	confirmed := s.settlement(txHash(1))
	s.Equal(models.VerificationStatusConfirmed, confirmed.VerificationStatus)
	s.Equal("mined in block 80", confirmed.VerificationNote)
	s.NotNil(confirmed.VerifiedAt)

	s.Equal(models.VerificationStatusReverted, s.settlement(txHash(2)).VerificationStatus)
	// Six confirmations of twelve.
	s.Equal(models.VerificationStatusPending, s.settlement(txHash(3)).VerificationStatus)
	// Unknown to the node.
	s.Equal(models.VerificationStatusPending, s.settlement(txHash(4)).VerificationStatus)
	s.Equal(models.VerificationStatusUnverifiable, s.settlement("bank-transfer-991").VerificationStatus)

	// Verification only annotates; the reverted position stays on the ledger.
	s.Equal(int64(50), s.held(propertyID, "alice"))
	s.assertConserved(propertyID)
}

func (s *BlockchainServiceSuite) TestLaterPassConfirmsDeeperBlocks() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 10, txHash(7))
	s.chain.mined(txHash(7), 95, types.ReceiptStatusSuccessful)

	summary, err := s.verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.StillPending)

	s.chain.head = 106
	summary, err = s.verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Confirmed)

	// Resolved settlements are not looked up again.
	lookups := s.chain.lookups
	summary, err = s.verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(summary.Checked)
	s.Equal(lookups, s.chain.lookups)
}

func (s *BlockchainServiceSuite) TestRPCErrorsLeaveSettlementPending() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 10, txHash(9))
	s.chain.errs[common.HexToHash(txHash(9))] = errors.New("connection reset")

	summary, err := s.verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.StillPending)
	s.Equal(models.VerificationStatusPending, s.settlement(txHash(9)).VerificationStatus)
}

func (s *BlockchainServiceSuite) TestHeadFailureAbortsPass() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 10, txHash(5))
	s.chain.headErr = errors.New("node syncing")

	_, err := s.verifier.VerifyPending(s.ctx)
	s.Error(err)
	s.Zero(s.chain.lookups)
}

func (s *BlockchainServiceSuite) TestNothingPendingSkipsChain() {
	s.chain.headErr = errors.New("must not be called")

	summary, err := s.verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(summary.Checked)
}

func (s *BlockchainServiceSuite) TestBatchSizeLimitsPass() {
	propertyID := s.listedProperty(1000)
	for i := 1; i <= 3; i++ {
		s.invest(propertyID, "alice", walletAlice, 1, txHash(100+i))
		s.chain.mined(txHash(100+i), 10, types.ReceiptStatusSuccessful)
	}

	verifier := NewBlockchainService(s.db, s.chain, config.BlockchainConfig{VerifyBatchSize: 2})
	summary, err := verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, summary.Confirmed)

	summary, err = verifier.VerifyPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Confirmed)
}
