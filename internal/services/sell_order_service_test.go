package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/models"
)

type SellOrderServiceSuite struct {
	ledgerSuite
}

func TestSellOrderService(t *testing.T) {
	suite.Run(t, new(SellOrderServiceSuite))
}

func (s *SellOrderServiceSuite) complete(orderID uuid.UUID, buyerID, wallet, settlementID string) (*SellOrderCompletion, bool, error) {
	return s.sellOrders.CompleteSellOrder(s.ctx, orderID, buyerID, &CompleteSellOrderRequest{
		WalletAddress: wallet,
		SettlementID:  settlementID,
	})
}

func (s *SellOrderServiceSuite) TestCreateSellOrderReservesHoldings() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")

	order := s.listForSale(propertyID, "alice", walletAlice, 60, "0xlist-1")
	s.Equal(models.SellOrderStatusPending, order.Status)
	s.True(order.PricePerToken.Equal(decimal.NewFromFloat(1.25)))

	_, _, err := s.sellOrders.CreateSellOrder(s.ctx, "alice", &CreateSellOrderRequest{
		PropertyID:    propertyID,
		WalletAddress: walletAlice,
		Tokens:        41,
		PricePerToken: decimal.NewFromInt(1),
		SettlementID:  "0xlist-2",
	})
	s.ErrorIs(err, apperrors.ErrInsufficientHoldings)

	s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist-3")
	// Listing moves no tokens.
	s.Equal(int64(100), s.held(propertyID, "alice"))
}

func (s *SellOrderServiceSuite) TestCreateSellOrderWithoutHoldings() {
	propertyID := s.listedProperty(1000)

	_, _, err := s.sellOrders.CreateSellOrder(s.ctx, "bob", &CreateSellOrderRequest{
		PropertyID:    propertyID,
		WalletAddress: walletBob,
		Tokens:        1,
		PricePerToken: decimal.NewFromInt(1),
		SettlementID:  "0xnothing",
	})
	s.ErrorIs(err, apperrors.ErrInsufficientHoldings)
}

func (s *SellOrderServiceSuite) TestCreateSellOrderReplay() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	req := &CreateSellOrderRequest{
		PropertyID:    propertyID,
		WalletAddress: walletAlice,
		Tokens:        70,
		PricePerToken: decimal.NewFromInt(2),
		SettlementID:  "0xlist-once",
	}

	first, replayed, err := s.sellOrders.CreateSellOrder(s.ctx, "alice", req)
	s.Require().NoError(err)
	s.False(replayed)

	// A second delivery would fail the holdings check if it were not
	// recognised as a replay.
	second, replayed, err := s.sellOrders.CreateSellOrder(s.ctx, "alice", req)
	s.Require().NoError(err)
	s.True(replayed)
	s.Equal(first.ID, second.ID)

	var count int64
	s.Require().NoError(s.db.Model(&models.SellOrder{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *SellOrderServiceSuite) TestSellOrdersAllowedOnDelistedProperty() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	_, err := s.properties.DelistProperty(s.ctx, propertyID)
	s.Require().NoError(err)

	order := s.listForSale(propertyID, "alice", walletAlice, 10, "0xafter-delist")
	_, _, err = s.complete(order.ID, "bob", walletBob, "0xbought-after-delist")
	s.Require().NoError(err)
	s.Equal(int64(10), s.held(propertyID, "bob"))
}

func (s *SellOrderServiceSuite) TestCompleteSellOrderTransfersTokens() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")
	availableBefore := s.property(propertyID).AvailableTokens

	completion, replayed, err := s.complete(order.ID, "bob", walletBob, "0xfill")
	s.Require().NoError(err)
	s.False(replayed)

	s.Equal(models.SellOrderStatusCompleted, completion.SellOrder.Status)
	s.Require().NotNil(completion.SellOrder.BuyerUserID)
	s.Equal("bob", *completion.SellOrder.BuyerUserID)
	s.Require().NotNil(completion.SellOrder.CompletedAt)

	s.Equal("bob", completion.Investment.UserID)
	s.Equal(int64(40), completion.Investment.Tokens)
	s.Equal(models.InvestmentSourceTransfer, completion.Investment.Source)
	s.True(completion.Investment.Amount.Equal(decimal.NewFromInt(50)), "40 tokens at 1.25, got %s", completion.Investment.Amount)

	s.Equal(int64(60), s.held(propertyID, "alice"))
	s.Equal(int64(40), s.held(propertyID, "bob"))
	s.Equal(int64(100), s.issued(propertyID))
	s.Equal(availableBefore, s.property(propertyID).AvailableTokens)
	s.assertConserved(propertyID)
}

func (s *SellOrderServiceSuite) TestCompletionDebitsOldestPositionsFirst() {
	propertyID := s.listedProperty(1000)
	oldest := s.invest(propertyID, "alice", walletAlice, 30, "0xlot-1")
	time.Sleep(5 * time.Millisecond)
	middle := s.invest(propertyID, "alice", walletAlice, 30, "0xlot-2")
	time.Sleep(5 * time.Millisecond)
	newest := s.invest(propertyID, "alice", walletAlice, 30, "0xlot-3")

	order := s.listForSale(propertyID, "alice", walletAlice, 45, "0xlist")
	_, _, err := s.complete(order.ID, "bob", walletBob, "0xfill")
	s.Require().NoError(err)

	reload := func(id uuid.UUID) int64 {
		var inv models.Investment
		s.Require().NoError(s.db.First(&inv, "id = ?", id).Error)
		return inv.Tokens
	}
	s.Equal(int64(0), reload(oldest.ID))
	s.Equal(int64(15), reload(middle.ID))
	s.Equal(int64(30), reload(newest.ID))
	s.Equal(int64(45), s.held(propertyID, "alice"))
}

func (s *SellOrderServiceSuite) TestCompleteReplayReturnsSameResult() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")

	first, _, err := s.complete(order.ID, "bob", walletBob, "0xfill")
	s.Require().NoError(err)

	second, replayed, err := s.complete(order.ID, "bob", walletBob, "0xfill")
	s.Require().NoError(err)
	s.True(replayed)
	s.Equal(first.Investment.ID, second.Investment.ID)
	s.Equal(first.SellOrder.ID, second.SellOrder.ID)
	s.Equal(int64(60), s.held(propertyID, "alice"))
	s.Equal(int64(40), s.held(propertyID, "bob"))
}

func (s *SellOrderServiceSuite) TestCompleteReplayIgnoresHashLetterCase() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, txHash(0x51))
	order := s.listForSale(propertyID, "alice", walletAlice, 40, txHash(0x52))

	fill := txHash(0x53)
	first, _, err := s.complete(order.ID, "bob", walletBob, fill)
	s.Require().NoError(err)

	second, replayed, err := s.complete(order.ID, "bob", walletBob, "0x"+strings.ToUpper(fill[2:]))
	s.Require().NoError(err)
	s.True(replayed)
	s.Equal(first.Investment.ID, second.Investment.ID)
	s.Equal(int64(40), s.held(propertyID, "bob"))
}

func (s *SellOrderServiceSuite) TestSecondBuyerGetsNotPending() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")

	_, _, err := s.complete(order.ID, "bob", walletBob, "0xfill-bob")
	s.Require().NoError(err)

	_, _, err = s.complete(order.ID, "carol", walletCarol, "0xfill-carol")
	s.ErrorIs(err, apperrors.ErrSellOrderNotPending)
	s.Equal(apperrors.KindConflict, apperrors.KindOf(err))
	s.Zero(s.held(propertyID, "carol"))

	_, err = s.guard.Get(s.ctx, "0xfill-carol")
	s.ErrorIs(err, apperrors.ErrSettlementNotFound)
}

func (s *SellOrderServiceSuite) TestConcurrentCompletionsFillOnce() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")

	buyers := []struct{ id, wallet string }{{"bob", walletBob}, {"carol", walletCarol}}
	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, id, wallet string) {
			defer wg.Done()
			_, _, errs[i] = s.complete(order.ID, id, wallet, "0xfill-"+id)
		}(i, b.id, b.wallet)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, apperrors.ErrSellOrderNotPending)
	}
	s.Equal(1, succeeded)
	s.Equal(int64(40), s.held(propertyID, "bob")+s.held(propertyID, "carol"))
	s.Equal(int64(60), s.held(propertyID, "alice"))
	s.assertConserved(propertyID)
}

func (s *SellOrderServiceSuite) TestCompleteRacesCancel() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")

	var wg sync.WaitGroup
	var completeErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, completeErr = s.complete(order.ID, "bob", walletBob, "0xfill")
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = s.sellOrders.CancelSellOrder(s.ctx, order.ID, "alice")
	}()
	wg.Wait()

	s.True((completeErr == nil) != (cancelErr == nil), "exactly one of complete and cancel must win")

	final, err := s.sellOrders.GetSellOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	if completeErr == nil {
		s.Equal(models.SellOrderStatusCompleted, final.Status)
		s.ErrorIs(cancelErr, apperrors.ErrSellOrderNotPending)
		s.Equal(int64(40), s.held(propertyID, "bob"))
	} else {
		s.Equal(models.SellOrderStatusCancelled, final.Status)
		s.ErrorIs(completeErr, apperrors.ErrSellOrderNotPending)
		s.Zero(s.held(propertyID, "bob"))
		s.Equal(int64(100), s.held(propertyID, "alice"))
	}
}

func (s *SellOrderServiceSuite) TestSelfPurchaseIsRejected() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")

	_, _, err := s.complete(order.ID, "alice", walletAlice, "0xself")
	s.ErrorIs(err, apperrors.ErrSelfPurchase)

	fresh, err := s.sellOrders.GetSellOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(models.SellOrderStatusPending, fresh.Status)
}

func (s *SellOrderServiceSuite) TestCompleteUnknownOrder() {
	_, _, err := s.complete(uuid.New(), "bob", walletBob, "0xghost")
	s.ErrorIs(err, apperrors.ErrSellOrderNotFound)
}

func (s *SellOrderServiceSuite) TestCompletionSettlementCannotFillAnotherOrder() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	first := s.listForSale(propertyID, "alice", walletAlice, 10, "0xlist-1")
	second := s.listForSale(propertyID, "alice", walletAlice, 10, "0xlist-2")

	_, _, err := s.complete(first.ID, "bob", walletBob, "0xfill")
	s.Require().NoError(err)

	_, _, err = s.complete(second.ID, "bob", walletBob, "0xfill")
	s.ErrorIs(err, apperrors.ErrSettlementReused)
}

func (s *SellOrderServiceSuite) TestCancelSellOrder() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 100, "0xlist")

	_, err := s.sellOrders.CancelSellOrder(s.ctx, order.ID, "bob")
	s.ErrorIs(err, apperrors.ErrNotOwner)
	s.Equal(apperrors.KindUnauthorized, apperrors.KindOf(err))

	cancelled, err := s.sellOrders.CancelSellOrder(s.ctx, order.ID, "alice")
	s.Require().NoError(err)
	s.Equal(models.SellOrderStatusCancelled, cancelled.Status)
	s.NotNil(cancelled.CancelledAt)

	_, err = s.sellOrders.CancelSellOrder(s.ctx, order.ID, "alice")
	s.ErrorIs(err, apperrors.ErrSellOrderNotPending)

	// Cancelling releases the reservation.
	s.listForSale(propertyID, "alice", walletAlice, 100, "0xrelist")

	_, err = s.sellOrders.CancelSellOrder(s.ctx, uuid.New(), "alice")
	s.ErrorIs(err, apperrors.ErrSellOrderNotFound)
}

func (s *SellOrderServiceSuite) TestChainReference() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")

	_, err := s.sellOrders.GetChainRef(s.ctx, order.ID)
	s.ErrorIs(err, apperrors.ErrChainRefNotFound)

	_, err = s.sellOrders.SetChainRef(s.ctx, order.ID, "bob", &SetChainRefRequest{ChainOrderID: "42"})
	s.ErrorIs(err, apperrors.ErrNotOwner)

	updated, err := s.sellOrders.SetChainRef(s.ctx, order.ID, "alice", &SetChainRefRequest{ChainOrderID: "42"})
	s.Require().NoError(err)
	s.Require().NotNil(updated.ChainOrderID)
	s.Equal("42", *updated.ChainOrderID)

	_, err = s.sellOrders.SetChainRef(s.ctx, order.ID, "alice", &SetChainRefRequest{ChainOrderID: "42"})
	s.NoError(err)

	_, err = s.sellOrders.SetChainRef(s.ctx, order.ID, "alice", &SetChainRefRequest{ChainOrderID: "43"})
	s.ErrorIs(err, apperrors.ErrChainRefAlreadySet)

	ref, err := s.sellOrders.GetChainRef(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal("42", ref)

	_, _, err = s.complete(order.ID, "bob", walletBob, "0xfill")
	s.Require().NoError(err)
	_, err = s.sellOrders.GetChainRef(s.ctx, order.ID)
	s.ErrorIs(err, apperrors.ErrSellOrderNotPending)
}

func (s *SellOrderServiceSuite) TestResaleOfTransferredTokens() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, "0xbuy")
	order := s.listForSale(propertyID, "alice", walletAlice, 40, "0xlist")
	_, _, err := s.complete(order.ID, "bob", walletBob, "0xfill")
	s.Require().NoError(err)

	resale := s.listForSale(propertyID, "bob", walletBob, 40, "0xbob-list")
	_, _, err = s.complete(resale.ID, "carol", walletCarol, "0xcarol-fill")
	s.Require().NoError(err)

	s.Equal(int64(60), s.held(propertyID, "alice"))
	s.Zero(s.held(propertyID, "bob"))
	s.Equal(int64(40), s.held(propertyID, "carol"))
	s.Equal(int64(100), s.issued(propertyID))
	s.assertConserved(propertyID)
}
