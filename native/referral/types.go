package referral

import "strings"

// ReferralInfo records a registered referral code. The referrer/authority
// split is frozen at registration so later rate changes never redistribute
// commissions on existing codes.
type ReferralInfo struct {
	Code         string
	Referrer     [20]byte
	ReferrerBps  uint32
	AuthorityBps uint32
	CreatedAt    int64
}

// Clone returns a copy of the referral record.
func (r *ReferralInfo) Clone() *ReferralInfo {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// TotalBps returns the combined referral rate of the record.
func (r *ReferralInfo) TotalBps() uint32 {
	if r == nil {
		return 0
	}
	return r.ReferrerBps + r.AuthorityBps
}

// Params holds the fee policy the engine evaluates. Rates are basis points.
type Params struct {
	// BaseFeeBps is the platform fee charged on fills absent a per-user
	// override and absent an offer-level snapshot.
	BaseFeeBps uint32
	// BaseReferralBps + ExtraReferralBps is the total referral rate a newly
	// registered code must split between referrer and authority.
	BaseReferralBps  uint32
	ExtraReferralBps uint32
	// Authority receives the platform-side share of referral commissions.
	Authority [20]byte
}

// NormalizeCode canonicalises a referral code for storage and lookup.
func NormalizeCode(code string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" || len(trimmed) > 64 {
		return "", ErrInvalidCode
	}
	return trimmed, nil
}
