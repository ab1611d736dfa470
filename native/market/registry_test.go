package market

import (
	"errors"
	"math/big"
	"testing"
)

type mockState struct {
	roles   map[string]map[[20]byte]bool
	markets map[[32]byte]*MarketPlace
	tokens  map[string]bool
}

func newMockState() *mockState {
	return &mockState{
		roles:   make(map[string]map[[20]byte]bool),
		markets: make(map[[32]byte]*MarketPlace),
		tokens:  make(map[string]bool),
	}
}

func (m *mockState) grant(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	var key [20]byte
	copy(key[:], addr)
	return m.roles[role][key]
}

func (m *mockState) MarketPut(mkt *MarketPlace) error {
	m.markets[mkt.ID] = mkt.Clone()
	return nil
}

func (m *mockState) MarketGet(id [32]byte) (*MarketPlace, bool) {
	mkt, ok := m.markets[id]
	if !ok {
		return nil, false
	}
	return mkt.Clone(), true
}

func (m *mockState) TokenPut(symbol string) error {
	m.tokens[symbol] = true
	return nil
}

func (m *mockState) TokenExists(symbol string) bool {
	return m.tokens[symbol]
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func newTestRegistry(t *testing.T) (*Registry, *mockState, [20]byte) {
	t.Helper()
	state := newMockState()
	admin := testAddr(1)
	state.grant("ROLE_MARKET_ADMIN", admin)
	registry := NewRegistry(state)
	registry.SetNowFunc(func() int64 { return 1_000 })
	return registry, state, admin
}

func TestCreateMarketRequiresAdmin(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, err := registry.CreateMarket(testAddr(9), "zkfoo", false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateMarketLifecycle(t *testing.T) {
	registry, _, admin := newTestRegistry(t)

	mkt, err := registry.CreateMarket(admin, "ZkFoo", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if mkt.Status != StatusUnInitialized {
		t.Fatalf("new market should be uninitialized, got %s", mkt.Status)
	}
	if !mkt.FixedRatio {
		t.Fatalf("fixed ratio flag lost")
	}
	if mkt.Name != "zkfoo" {
		t.Fatalf("name not normalized: %q", mkt.Name)
	}

	if _, err := registry.CreateMarket(admin, "zkfoo", false); !errors.Is(err, ErrMarketExists) {
		t.Fatalf("expected ErrMarketExists, got %v", err)
	}

	if err := registry.SetStatus(admin, mkt.ID, StatusOnline); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := registry.GetByName("ZKFOO")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got.Status != StatusOnline {
		t.Fatalf("expected online, got %s", got.Status)
	}
}

func TestSetStatusRejectsUninitializedTarget(t *testing.T) {
	registry, _, admin := newTestRegistry(t)
	mkt, err := registry.CreateMarket(admin, "zkfoo", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := registry.SetStatus(admin, mkt.ID, StatusUnInitialized); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestPublishSettlement(t *testing.T) {
	registry, _, admin := newTestRegistry(t)
	mkt, err := registry.CreateMarket(admin, "zkfoo", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := registry.RegisterToken(admin, "usdc"); err != nil {
		t.Fatalf("register token: %v", err)
	}

	// Settlement cannot publish while the market is uninitialized.
	err = registry.PublishSettlement(admin, mkt.ID, "USDC", big.NewInt(5), 2_000, 86_400)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if err := registry.SetStatus(admin, mkt.ID, StatusOnline); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := registry.PublishSettlement(admin, mkt.ID, "usdc", big.NewInt(5), 2_000, 86_400); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := registry.Get(mkt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SettlementToken != "USDC" || got.TGE != 2_000 || got.SettlementPeriod != 86_400 {
		t.Fatalf("settlement parameters not persisted: %+v", got)
	}
	if got.Open(1_999) {
		t.Fatalf("market open before tge")
	}
	if !got.Open(2_000) {
		t.Fatalf("market not open at tge")
	}
	if !got.InSettleWindow(2_000) {
		t.Fatalf("window should include tge")
	}
	if got.InSettleWindow(2_000 + 86_400) {
		t.Fatalf("window should exclude tge+period")
	}
}

func TestPublishSettlementRejectsBadParams(t *testing.T) {
	registry, _, admin := newTestRegistry(t)
	mkt, _ := registry.CreateMarket(admin, "zkfoo", false)
	_ = registry.SetStatus(admin, mkt.ID, StatusOnline)
	_ = registry.RegisterToken(admin, "USDC")

	cases := []struct {
		name   string
		token  string
		rate   *big.Int
		tge    int64
		period int64
		want   error
	}{
		{"unregistered token", "WETH", big.NewInt(5), 2_000, 100, ErrInvalidToken},
		{"zero rate", "USDC", big.NewInt(0), 2_000, 100, ErrInvalidParams},
		{"zero tge", "USDC", big.NewInt(5), 0, 100, ErrInvalidParams},
		{"zero period", "USDC", big.NewInt(5), 2_000, 0, ErrInvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := registry.PublishSettlement(admin, mkt.ID, tc.token, tc.rate, tc.tge, tc.period)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterTokenDuplicate(t *testing.T) {
	registry, _, admin := newTestRegistry(t)
	if err := registry.RegisterToken(admin, "usdc"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.RegisterToken(admin, "USDC"); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
}

type pauseAll struct{}

func (pauseAll) IsPaused(string) bool { return true }

func TestPausedRegistryRejectsWrites(t *testing.T) {
	registry, _, admin := newTestRegistry(t)
	registry.SetPauses(pauseAll{})
	if _, err := registry.CreateMarket(admin, "zkfoo", false); err == nil {
		t.Fatalf("expected pause guard to trip")
	}
}
