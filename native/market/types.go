package market

import (
	"math/big"
	"strings"

	"otcmarket/native/common"
	"otcmarket/native/ident"
)

// Status represents the lifecycle of a market place.
type Status uint8

const (
	StatusUnInitialized Status = iota
	StatusOnline
	StatusOffline
)

// Valid reports whether the status value is supported.
func (s Status) Valid() bool {
	switch s {
	case StatusUnInitialized, StatusOnline, StatusOffline:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "uninitialized"
	}
}

// MarketPlace holds the registry record for one market name. The identifier
// is derived from the name, so registry consumers can compute it without a
// lookup. Settlement parameters are only meaningful once published.
type MarketPlace struct {
	ID               [32]byte
	Name             string
	Status           Status
	FixedRatio       bool
	SettlementToken  string
	TokenPerPoint    *big.Int
	TGE              int64
	SettlementPeriod int64
	CreatedAt        int64
}

// Clone returns a deep copy of the market record.
func (m *MarketPlace) Clone() *MarketPlace {
	if m == nil {
		return nil
	}
	clone := *m
	clone.TokenPerPoint = common.CloneBig(m.TokenPerPoint)
	return &clone
}

// Open reports whether settlement parameters are published and the token
// generation time has passed.
func (m *MarketPlace) Open(now int64) bool {
	if m == nil || m.Status != StatusOnline {
		return false
	}
	return m.TGE > 0 && now >= m.TGE
}

// InSettleWindow reports whether now falls inside the bounded settlement
// period following the token generation time.
func (m *MarketPlace) InSettleWindow(now int64) bool {
	if !m.Open(now) {
		return false
	}
	return now < m.TGE+m.SettlementPeriod
}

// NormalizeName canonicalises a market name for derivation and storage.
func NormalizeName(name string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

// DeriveID maps a market name to its deterministic identifier.
func DeriveID(name string) ([32]byte, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return [32]byte{}, err
	}
	return ident.MarketID(normalized), nil
}
