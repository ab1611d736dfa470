// Package referral implements the fee & referral engine: per-user platform
// fee rates and referral-code commission splits. The offer/stock engine reads
// it as a pure rate service; it never moves funds itself.
package referral

import (
	"fmt"
	"time"

	"otcmarket/core/events"
	"otcmarket/native/common"
)

const (
	roleFeeAdmin = "ROLE_FEE_ADMIN"
	moduleName   = "referral"
)

// State is the persistence surface the engine requires.
type State interface {
	HasRole(role string, addr []byte) bool
	ReferralCodePut(*ReferralInfo) error
	ReferralCodeGet(code string) (*ReferralInfo, bool)
	ReferralBindingPut(user [20]byte, code string) error
	ReferralBindingGet(user [20]byte) (string, bool)
	FeeOverridePut(user [20]byte, bps uint32) error
	FeeOverrideGet(user [20]byte) (uint32, bool)
}

// Engine evaluates fee rates and referral splits against stored records.
type Engine struct {
	state   State
	params  Params
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewEngine creates a referral engine over the supplied state backend.
func NewEngine(state State, params Params) *Engine {
	return &Engine{
		state:   state,
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns the engine's fee policy.
func (e *Engine) Params() Params { return e.params }

// Authority returns the platform authority account.
func (e *Engine) Authority() [20]byte { return e.params.Authority }

// RegisterCode stores a new referral code. The supplied split must add up to
// the configured base+extra referral rate at registration time; the split is
// then frozen on the record.
func (e *Engine) RegisterCode(referrer [20]byte, code string, referrerBps, authorityBps uint32) (*ReferralInfo, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	total := e.params.BaseReferralBps + e.params.ExtraReferralBps
	// Bound each side before summing so the uint32 addition cannot wrap.
	if referrerBps > common.RatioScale || authorityBps > common.RatioScale || referrerBps+authorityBps != total {
		return nil, fmt.Errorf("%w: %d+%d != %d", ErrInvalidSplit, referrerBps, authorityBps, total)
	}
	if _, ok := e.state.ReferralCodeGet(normalized); ok {
		return nil, fmt.Errorf("%w: %s", ErrCodeExists, normalized)
	}
	info := &ReferralInfo{
		Code:         normalized,
		Referrer:     referrer,
		ReferrerBps:  referrerBps,
		AuthorityBps: authorityBps,
		CreatedAt:    e.nowFn(),
	}
	if err := e.state.ReferralCodePut(info); err != nil {
		return nil, err
	}
	e.emit(newCodeEvent(EventTypeCodeRegistered, info))
	return info.Clone(), nil
}

// BindCode associates a user with a referral code. Referrers cannot bind
// their own code.
func (e *Engine) BindCode(user [20]byte, code string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	normalized, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	info, ok := e.state.ReferralCodeGet(normalized)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCodeNotFound, normalized)
	}
	if info.Referrer == user {
		return ErrSelfReferral
	}
	if err := e.state.ReferralBindingPut(user, normalized); err != nil {
		return err
	}
	e.emit(newBindEvent(user, info))
	return nil
}

// SetFeeOverride records a per-user platform fee rate. Admin only.
func (e *Engine) SetFeeOverride(caller, user [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.state.HasRole(roleFeeAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if bps > common.RatioScale {
		return fmt.Errorf("%w: %d", ErrInvalidRate, bps)
	}
	return e.state.FeeOverridePut(user, bps)
}

// PlatformFeeRate returns the fee rate applicable to a user: the per-user
// override when present, the configured base rate otherwise. The second
// return reports whether an override was found.
func (e *Engine) PlatformFeeRate(user [20]byte) (uint32, bool) {
	if e == nil || e.state == nil {
		return 0, false
	}
	if bps, ok := e.state.FeeOverrideGet(user); ok {
		return bps, true
	}
	return e.params.BaseFeeBps, false
}

// ReferralSplit resolves the referral record bound to a user, if any.
func (e *Engine) ReferralSplit(user [20]byte) (*ReferralInfo, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	code, ok := e.state.ReferralBindingGet(user)
	if !ok {
		return nil, false
	}
	info, ok := e.state.ReferralCodeGet(code)
	if !ok {
		return nil, false
	}
	return info.Clone(), true
}

func (e *Engine) emit(evt *coreEvent) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}
