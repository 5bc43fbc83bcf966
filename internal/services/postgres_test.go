package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/apperrors"
	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/testutil"
)

func TestLockForUpdateByDialect(t *testing.T) {
	id := uuid.New()
	query := func(tx *gorm.DB) *gorm.DB {
		return lockForUpdate(tx).First(&models.Property{}, "id = ?", id)
	}

	pg, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost dbname=unused"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	assert.Contains(t, pg.ToSQL(query), "FOR UPDATE")

	assert.NotContains(t, testutil.NewDB(t).ToSQL(query), "FOR UPDATE")
}

// PostgresLedgerSuite runs the contention scenarios against a pooled
// Postgres connection, where row locks rather than a single SQLite writer
// keep concurrent transactions apart.
type PostgresLedgerSuite struct {
	ledgerSuite
}

func TestPostgresLedger(t *testing.T) {
	if !testutil.PostgresEnabled() {
		t.Skipf("%s not set", testutil.PostgresEnvVar)
	}
	suite.Run(t, &PostgresLedgerSuite{ledgerSuite{openDB: testutil.NewPostgresDB}})
}

func (s *PostgresLedgerSuite) TestConcurrentInvestmentsNeverOversell() {
	propertyID := s.listedProperty(1000)

	const investors = 10
	var wg sync.WaitGroup
	errs := make([]error, investors)
	for i := 0; i < investors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.investments.RecordInvestment(s.ctx, fmt.Sprintf("investor-%d", i), &RecordInvestmentRequest{
				PropertyID:    propertyID,
				WalletAddress: walletAlice,
				Tokens:        150,
				SettlementID:  txHash(1000 + i),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, apperrors.ErrInsufficientSupply)
	}
	s.Equal(6, succeeded)
	s.Equal(int64(900), s.issued(propertyID))
	s.Equal(int64(100), s.property(propertyID).AvailableTokens)
	s.assertConserved(propertyID)
}

func (s *PostgresLedgerSuite) TestConcurrentReplaysRecordOnce() {
	propertyID := s.listedProperty(1000)
	req := RecordInvestmentRequest{
		PropertyID:    propertyID,
		WalletAddress: walletAlice,
		Tokens:        25,
		SettlementID:  txHash(77),
	}

	const attempts = 8
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, attempts)
	replays := make([]bool, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := req
			investment, replayed, err := s.investments.RecordInvestment(s.ctx, "alice", &r)
			errs[i], replays[i] = err, replayed
			if investment != nil {
				ids[i] = investment.ID
			}
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range errs {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
		if !replays[i] {
			fresh++
		}
	}
	s.Equal(1, fresh)
	s.Equal(int64(25), s.issued(propertyID))
}

func (s *PostgresLedgerSuite) TestConcurrentCompletionsFillOnce() {
	propertyID := s.listedProperty(1000)
	s.invest(propertyID, "alice", walletAlice, 100, txHash(1))
	order := s.listForSale(propertyID, "alice", walletAlice, 40, txHash(2))

	const buyers = 5
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.sellOrders.CompleteSellOrder(s.ctx, order.ID, fmt.Sprintf("buyer-%d", i), &CompleteSellOrderRequest{
				WalletAddress: walletBob,
				SettlementID:  txHash(100 + i),
			})
		}(i)
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
	s.Equal(int64(60), s.held(propertyID, "alice"))
	s.assertConserved(propertyID)
}
