package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"otcmarket/native/ledger"
	"otcmarket/native/market"
	"otcmarket/native/premarket"
	"otcmarket/native/referral"
	"otcmarket/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func id(b byte) [32]byte {
	var out [32]byte
	out[0] = b
	return out
}

func TestRolesAndPauses(t *testing.T) {
	m := newTestManager(t)
	admin := addr(1)

	require.False(t, m.HasRole("ROLE_MARKET_ADMIN", admin[:]))
	require.NoError(t, m.GrantRole("ROLE_MARKET_ADMIN", admin[:]))
	require.True(t, m.HasRole("ROLE_MARKET_ADMIN", admin[:]))
	require.False(t, m.HasRole("ROLE_FEE_ADMIN", admin[:]))

	require.False(t, m.IsPaused("premarket"))
	require.NoError(t, m.SetPaused("premarket", true))
	require.True(t, m.IsPaused("premarket"))
	require.False(t, m.IsPaused("market"))
	require.NoError(t, m.SetPaused("premarket", false))
	require.False(t, m.IsPaused("premarket"))
}

func TestLedgerBalancesPersist(t *testing.T) {
	m := newTestManager(t)
	alice := addr(1)

	bal, err := m.LedgerBalance(alice, "USDC", ledger.BucketAvailable)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	require.NoError(t, m.SetLedgerBalance(alice, "USDC", ledger.BucketAvailable, big.NewInt(777)))
	bal, err = m.LedgerBalance(alice, "USDC", ledger.BucketAvailable)
	require.NoError(t, err)
	require.Equal(t, int64(777), bal.Int64())

	// Buckets are independent.
	bal, err = m.LedgerBalance(alice, "USDC", ledger.BucketClaimable)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	pot := id(9)
	require.NoError(t, m.SetLedgerEscrowBalance(pot, "USDC", big.NewInt(55)))
	escrow, err := m.LedgerEscrowBalance(pot, "USDC")
	require.NoError(t, err)
	require.Equal(t, int64(55), escrow.Int64())
}

func TestMarketRoundTrip(t *testing.T) {
	m := newTestManager(t)
	mkt := &market.MarketPlace{
		ID:               id(1),
		Name:             "zkfoo",
		Status:           market.StatusOnline,
		TokenPerPoint:    big.NewInt(5),
		TGE:              2_000,
		SettlementPeriod: 86_400,
	}
	require.NoError(t, m.MarketPut(mkt))

	got, ok := m.MarketGet(mkt.ID)
	require.True(t, ok)
	require.Equal(t, mkt.Name, got.Name)
	require.Equal(t, mkt.Status, got.Status)
	require.Equal(t, int64(5), got.TokenPerPoint.Int64())

	_, ok = m.MarketGet(id(2))
	require.False(t, ok)

	require.False(t, m.TokenExists("USDC"))
	require.NoError(t, m.TokenPut("USDC"))
	require.True(t, m.TokenExists("USDC"))
}

func TestReferralRoundTrip(t *testing.T) {
	m := newTestManager(t)
	info := &referral.ReferralInfo{
		Code:         "friends",
		Referrer:     addr(1),
		ReferrerBps:  3_000,
		AuthorityBps: 500,
	}
	require.NoError(t, m.ReferralCodePut(info))
	got, ok := m.ReferralCodeGet("friends")
	require.True(t, ok)
	require.Equal(t, info.Referrer, got.Referrer)
	require.Equal(t, uint32(3_000), got.ReferrerBps)

	user := addr(2)
	_, ok = m.ReferralBindingGet(user)
	require.False(t, ok)
	require.NoError(t, m.ReferralBindingPut(user, "friends"))
	code, ok := m.ReferralBindingGet(user)
	require.True(t, ok)
	require.Equal(t, "friends", code)

	require.NoError(t, m.FeeOverridePut(user, 0))
	bps, ok := m.FeeOverrideGet(user)
	require.True(t, ok)
	require.Zero(t, bps)
}

func TestOfferStockRoundTrip(t *testing.T) {
	m := newTestManager(t)
	offer := &premarket.Offer{
		ID:            id(1),
		Maker:         addr(1),
		Points:        big.NewInt(10),
		UnitPrice:     big.NewInt(100),
		Remaining:     big.NewInt(4),
		SettledPoints: big.NewInt(0),
		Status:        premarket.OfferOngoing,
	}
	require.NoError(t, m.OfferPut(offer))
	got, ok := m.OfferGet(offer.ID)
	require.True(t, ok)
	require.Equal(t, premarket.OfferOngoing, got.Status)
	require.Equal(t, int64(4), got.Remaining.Int64())

	stock := &premarket.Stock{
		ID:              id(2),
		Owner:           addr(2),
		OfferID:         offer.ID,
		Points:          big.NewInt(6),
		Price:           big.NewInt(100),
		Notional:        big.NewInt(600),
		Collateral:      big.NewInt(0),
		Fee:             big.NewInt(6),
		ReferrerCut:     big.NewInt(0),
		AuthorityCut:    big.NewInt(0),
		DeliveredPoints: big.NewInt(0),
		ClaimableValue:  big.NewInt(0),
	}
	require.NoError(t, m.StockPut(stock))
	gotStock, ok := m.StockGet(stock.ID)
	require.True(t, ok)
	require.Equal(t, int64(600), gotStock.Notional.Int64())

	require.NoError(t, m.OfferStocksAppend(offer.ID, stock.ID))
	require.NoError(t, m.OfferStocksAppend(offer.ID, id(3)))
	ids, err := m.OfferStocks(offer.ID)
	require.NoError(t, err)
	require.Equal(t, [][32]byte{stock.ID, id(3)}, ids)
}

func TestSequencesMonotonic(t *testing.T) {
	m := newTestManager(t)
	first, err := m.NextOfferSeq()
	require.NoError(t, err)
	second, err := m.NextOfferSeq()
	require.NoError(t, err)
	require.Equal(t, first+1, second)

	// Offer and stock counters advance independently.
	stockSeq, err := m.NextStockSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(1), stockSeq)
}
