package referral

import (
	"errors"
	"math"
	"testing"
)

type mockState struct {
	roles     map[string]map[[20]byte]bool
	codes     map[string]*ReferralInfo
	bindings  map[[20]byte]string
	overrides map[[20]byte]uint32
}

func newMockState() *mockState {
	return &mockState{
		roles:     make(map[string]map[[20]byte]bool),
		codes:     make(map[string]*ReferralInfo),
		bindings:  make(map[[20]byte]string),
		overrides: make(map[[20]byte]uint32),
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

func (m *mockState) ReferralCodePut(info *ReferralInfo) error {
	m.codes[info.Code] = info.Clone()
	return nil
}

func (m *mockState) ReferralCodeGet(code string) (*ReferralInfo, bool) {
	info, ok := m.codes[code]
	if !ok {
		return nil, false
	}
	return info.Clone(), true
}

func (m *mockState) ReferralBindingPut(user [20]byte, code string) error {
	m.bindings[user] = code
	return nil
}

func (m *mockState) ReferralBindingGet(user [20]byte) (string, bool) {
	code, ok := m.bindings[user]
	return code, ok
}

func (m *mockState) FeeOverridePut(user [20]byte, bps uint32) error {
	m.overrides[user] = bps
	return nil
}

func (m *mockState) FeeOverrideGet(user [20]byte) (uint32, bool) {
	bps, ok := m.overrides[user]
	return bps, ok
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	engine := NewEngine(state, Params{
		BaseFeeBps:       100,
		BaseReferralBps:  3000,
		ExtraReferralBps: 500,
		Authority:        testAddr(0xAA),
	})
	engine.SetNowFunc(func() int64 { return 1_000 })
	return engine, state
}

func TestRegisterCodeSplitMustMatch(t *testing.T) {
	engine, _ := newTestEngine(t)
	referrer := testAddr(1)

	if _, err := engine.RegisterCode(referrer, "friends", 3000, 400); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("expected ErrInvalidSplit, got %v", err)
	}
	info, err := engine.RegisterCode(referrer, "Friends", 3000, 500)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if info.Code != "friends" {
		t.Fatalf("code not normalized: %q", info.Code)
	}
	if info.TotalBps() != 3500 {
		t.Fatalf("expected total 3500, got %d", info.TotalBps())
	}
	if _, err := engine.RegisterCode(testAddr(2), "friends", 3000, 500); !errors.Is(err, ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got %v", err)
	}
}

func TestRegisterCodeRejectsWrappedSplit(t *testing.T) {
	engine, _ := newTestEngine(t)
	referrer := testAddr(1)

	// MaxUint32 + 3501 wraps back to the 3500 total; each side must stay
	// within the bps scale on its own.
	if _, err := engine.RegisterCode(referrer, "friends", math.MaxUint32, 3501); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("expected ErrInvalidSplit, got %v", err)
	}
	if _, err := engine.RegisterCode(referrer, "friends", 3501, math.MaxUint32); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("expected ErrInvalidSplit, got %v", err)
	}
}

func TestBindCode(t *testing.T) {
	engine, _ := newTestEngine(t)
	referrer := testAddr(1)
	user := testAddr(2)

	if err := engine.BindCode(user, "friends"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
	if _, err := engine.RegisterCode(referrer, "friends", 3000, 500); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := engine.BindCode(referrer, "friends"); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected ErrSelfReferral, got %v", err)
	}
	if err := engine.BindCode(user, "FRIENDS"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	info, ok := engine.ReferralSplit(user)
	if !ok {
		t.Fatalf("expected bound split")
	}
	if info.Referrer != referrer || info.ReferrerBps != 3000 || info.AuthorityBps != 500 {
		t.Fatalf("split mismatch: %+v", info)
	}
	if _, ok := engine.ReferralSplit(testAddr(3)); ok {
		t.Fatalf("unbound user should have no split")
	}
}

func TestSplitFrozenAtRegistration(t *testing.T) {
	engine, state := newTestEngine(t)
	referrer := testAddr(1)
	user := testAddr(2)
	if _, err := engine.RegisterCode(referrer, "friends", 3000, 500); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := engine.BindCode(user, "friends"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	// A later engine with different params still resolves the frozen split.
	rebuilt := NewEngine(state, Params{BaseFeeBps: 100, BaseReferralBps: 1000, ExtraReferralBps: 0})
	info, ok := rebuilt.ReferralSplit(user)
	if !ok || info.ReferrerBps != 3000 || info.AuthorityBps != 500 {
		t.Fatalf("split should be frozen on the record: %+v", info)
	}
}

func TestPlatformFeeRate(t *testing.T) {
	engine, state := newTestEngine(t)
	admin := testAddr(0x0F)
	state.grant("ROLE_FEE_ADMIN", admin)
	user := testAddr(2)

	bps, overridden := engine.PlatformFeeRate(user)
	if overridden || bps != 100 {
		t.Fatalf("expected base rate 100, got %d (override=%v)", bps, overridden)
	}

	if err := engine.SetFeeOverride(testAddr(9), user, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.SetFeeOverride(admin, user, 10_001); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	if err := engine.SetFeeOverride(admin, user, 0); err != nil {
		t.Fatalf("override: %v", err)
	}
	bps, overridden = engine.PlatformFeeRate(user)
	if !overridden || bps != 0 {
		t.Fatalf("expected zero override, got %d (override=%v)", bps, overridden)
	}
}
