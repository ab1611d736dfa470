package referral

import "errors"

var (
	ErrNilState     = errors.New("referral: state not configured")
	ErrUnauthorized = errors.New("referral: unauthorized")
	ErrInvalidCode  = errors.New("referral: invalid referral code")
	ErrCodeExists   = errors.New("referral: code already registered")
	ErrCodeNotFound = errors.New("referral: code not found")
	ErrInvalidSplit = errors.New("referral: split does not match configured rate")
	ErrSelfReferral = errors.New("referral: cannot refer yourself")
	ErrInvalidRate  = errors.New("referral: rate out of range")
)
