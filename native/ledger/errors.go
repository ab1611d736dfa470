package ledger

import "errors"

var (
	ErrNilState            = errors.New("ledger: state not configured")
	ErrInvalidBucket       = errors.New("ledger: invalid bucket")
	ErrInvalidToken        = errors.New("ledger: empty token symbol")
	ErrNegativeAmount      = errors.New("ledger: amount must be non-negative")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrInsufficientEscrow  = errors.New("ledger: insufficient escrow")
)
