// Package market implements the owner-gated market-place registry: the
// mapping from market names to deterministic identifiers, market status, and
// the post-open settlement parameters the delivery engine reads.
package market

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"otcmarket/core/events"
	"otcmarket/native/common"
)

const (
	roleMarketAdmin = "ROLE_MARKET_ADMIN"
	moduleName      = "market"
)

// State is the persistence surface the registry requires.
type State interface {
	HasRole(role string, addr []byte) bool
	MarketPut(*MarketPlace) error
	MarketGet(id [32]byte) (*MarketPlace, bool)
	TokenPut(symbol string) error
	TokenExists(symbol string) bool
}

// Registry manages persistence and retrieval of market places.
type Registry struct {
	state   State
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewRegistry creates a registry backed by the provided state manager.
func NewRegistry(state State) *Registry {
	return &Registry{
		state:   state,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used to broadcast registry updates.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetPauses(p common.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// SetNowFunc overrides the time source, primarily used in tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) requireAdmin(caller [20]byte) error {
	if !r.state.HasRole(roleMarketAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

// CreateMarket registers a new market name. The returned record carries the
// derived identifier; settlement parameters stay unset until published.
func (r *Registry) CreateMarket(caller [20]byte, name string, fixedRatio bool) (*MarketPlace, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	normalized, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	id, _ := DeriveID(normalized)
	if _, ok := r.state.MarketGet(id); ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketExists, normalized)
	}
	mkt := &MarketPlace{
		ID:            id,
		Name:          normalized,
		Status:        StatusUnInitialized,
		FixedRatio:    fixedRatio,
		TokenPerPoint: big.NewInt(0),
		CreatedAt:     r.nowFn(),
	}
	if err := r.state.MarketPut(mkt); err != nil {
		return nil, err
	}
	r.emit(newMarketEvent(EventTypeMarketCreated, mkt))
	return mkt.Clone(), nil
}

// SetStatus moves a market between Online and Offline. Markets are never
// deleted; Offline stops new offer activity.
func (r *Registry) SetStatus(caller [20]byte, id [32]byte, status Status) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := common.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if status != StatusOnline && status != StatusOffline {
		return ErrInvalidStatus
	}
	mkt, ok := r.state.MarketGet(id)
	if !ok {
		return ErrMarketNotFound
	}
	if mkt.Status == status {
		return nil
	}
	mkt.Status = status
	if err := r.state.MarketPut(mkt); err != nil {
		return err
	}
	r.emit(newMarketEvent(EventTypeMarketStatusUpdated, mkt))
	return nil
}

// PublishSettlement records the post-open parameters: the settlement token,
// the token-per-point conversion rate, the token generation time and the
// length of the settlement window. Once published the market counts as open
// from tge onward and abort paths close.
func (r *Registry) PublishSettlement(caller [20]byte, id [32]byte, token string, tokenPerPoint *big.Int, tge, settlementPeriod int64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := common.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	symbol := strings.ToUpper(strings.TrimSpace(token))
	if symbol == "" || !r.state.TokenExists(symbol) {
		return fmt.Errorf("%w: %s", ErrInvalidToken, token)
	}
	if common.IsZero(tokenPerPoint) || tokenPerPoint.Sign() < 0 {
		return fmt.Errorf("%w: token per point must be positive", ErrInvalidParams)
	}
	if tge <= 0 || settlementPeriod <= 0 {
		return fmt.Errorf("%w: tge and settlement period must be positive", ErrInvalidParams)
	}
	mkt, ok := r.state.MarketGet(id)
	if !ok {
		return ErrMarketNotFound
	}
	if mkt.Status != StatusOnline {
		return ErrInvalidStatus
	}
	mkt.SettlementToken = symbol
	mkt.TokenPerPoint = common.CloneBig(tokenPerPoint)
	mkt.TGE = tge
	mkt.SettlementPeriod = settlementPeriod
	if err := r.state.MarketPut(mkt); err != nil {
		return err
	}
	r.emit(newMarketEvent(EventTypeMarketSettlementSet, mkt))
	return nil
}

// RegisterToken whitelists a collateral/settlement token symbol.
func (r *Registry) RegisterToken(caller [20]byte, symbol string) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := common.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return ErrInvalidToken
	}
	if r.state.TokenExists(normalized) {
		return fmt.Errorf("%w: %s", ErrTokenExists, normalized)
	}
	return r.state.TokenPut(normalized)
}

// Get returns the market record for an id.
func (r *Registry) Get(id [32]byte) (*MarketPlace, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	mkt, ok := r.state.MarketGet(id)
	if !ok {
		return nil, ErrMarketNotFound
	}
	return mkt.Clone(), nil
}

// GetByName resolves a market by its human-readable name.
func (r *Registry) GetByName(name string) (*MarketPlace, error) {
	id, err := DeriveID(name)
	if err != nil {
		return nil, err
	}
	return r.Get(id)
}

func (r *Registry) emit(evt *coreEvent) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(evt)
}
