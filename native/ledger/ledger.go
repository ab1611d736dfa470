// Package ledger implements the venue's internal balance bookkeeping: a
// per-(account, token, bucket) table of spendable and earned funds plus escrow
// pots keyed by position id. The ledger enforces no business rules beyond
// non-negativity; lifecycle policy lives with the engines that call it.
package ledger

import (
	"math/big"
	"strings"

	"otcmarket/native/common"
)

// Bucket names a balance class within an account.
type Bucket string

const (
	// BucketAvailable holds spendable cash.
	BucketAvailable Bucket = "available"
	// BucketSalesRevenue holds maker proceeds from settled fills.
	BucketSalesRevenue Bucket = "sales_revenue"
	// BucketTaxIncome holds each-trade tax collected by makers.
	BucketTaxIncome Bucket = "tax_income"
	// BucketPointToken holds point-token denominated holdings.
	BucketPointToken Bucket = "point_token"
	// BucketClaimable holds settlement value delivered but not yet claimed.
	BucketClaimable Bucket = "claimable"
)

// Valid reports whether the bucket is one of the supported classes.
func (b Bucket) Valid() bool {
	switch b {
	case BucketAvailable, BucketSalesRevenue, BucketTaxIncome, BucketPointToken, BucketClaimable:
		return true
	default:
		return false
	}
}

// State is the persistence surface the ledger requires. All balances are
// stored as non-negative big integers; a missing entry reads as zero.
type State interface {
	LedgerBalance(addr [20]byte, token string, bucket Bucket) (*big.Int, error)
	SetLedgerBalance(addr [20]byte, token string, bucket Bucket, amount *big.Int) error
	LedgerEscrowBalance(id [32]byte, token string) (*big.Int, error)
	SetLedgerEscrowBalance(id [32]byte, token string, amount *big.Int) error
}

// Ledger wires bucket accounting to a state backend.
type Ledger struct {
	state State
}

// NewLedger creates a ledger over the supplied state backend.
func NewLedger(state State) *Ledger {
	return &Ledger{state: state}
}

func normalizeToken(token string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(token))
	if trimmed == "" {
		return "", ErrInvalidToken
	}
	return trimmed, nil
}

func (l *Ledger) check(token string, bucket Bucket, amount *big.Int) (string, error) {
	if l == nil || l.state == nil {
		return "", ErrNilState
	}
	normalized, err := normalizeToken(token)
	if err != nil {
		return "", err
	}
	if !bucket.Valid() {
		return "", ErrInvalidBucket
	}
	if amount != nil && amount.Sign() < 0 {
		return "", ErrNegativeAmount
	}
	return normalized, nil
}

// Balance returns the current balance of a bucket. Missing entries are zero.
func (l *Ledger) Balance(addr [20]byte, token string, bucket Bucket) (*big.Int, error) {
	normalized, err := l.check(token, bucket, nil)
	if err != nil {
		return nil, err
	}
	bal, err := l.state.LedgerBalance(addr, normalized, bucket)
	if err != nil {
		return nil, err
	}
	return common.CloneBig(bal), nil
}

// Credit adds amount to the bucket.
func (l *Ledger) Credit(addr [20]byte, token string, bucket Bucket, amount *big.Int) error {
	normalized, err := l.check(token, bucket, amount)
	if err != nil {
		return err
	}
	if common.IsZero(amount) {
		return nil
	}
	bal, err := l.state.LedgerBalance(addr, normalized, bucket)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(common.CloneBig(bal), amount)
	return l.state.SetLedgerBalance(addr, normalized, bucket, next)
}

// Debit removes amount from the bucket, failing when the balance is short.
func (l *Ledger) Debit(addr [20]byte, token string, bucket Bucket, amount *big.Int) error {
	normalized, err := l.check(token, bucket, amount)
	if err != nil {
		return err
	}
	if common.IsZero(amount) {
		return nil
	}
	bal, err := l.state.LedgerBalance(addr, normalized, bucket)
	if err != nil {
		return err
	}
	current := common.CloneBig(bal)
	if current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return l.state.SetLedgerBalance(addr, normalized, bucket, current.Sub(current, amount))
}

// Transfer moves amount between buckets of the same or different accounts.
func (l *Ledger) Transfer(from [20]byte, fromBucket Bucket, to [20]byte, toBucket Bucket, token string, amount *big.Int) error {
	if err := l.Debit(from, token, fromBucket, amount); err != nil {
		return err
	}
	return l.Credit(to, token, toBucket, amount)
}

// Withdraw moves earned funds from a revenue bucket back into the available
// bucket. Claimable is excluded; settlement claims move it through the
// delivery engine so claim tracking stays accurate.
func (l *Ledger) Withdraw(addr [20]byte, token string, bucket Bucket, amount *big.Int) error {
	switch bucket {
	case BucketSalesRevenue, BucketTaxIncome, BucketPointToken:
	default:
		return ErrInvalidBucket
	}
	return l.Transfer(addr, bucket, addr, BucketAvailable, token, amount)
}

// Withdrawable returns the total earned balance eligible for Withdraw.
func (l *Ledger) Withdrawable(addr [20]byte, token string) (*big.Int, error) {
	total := big.NewInt(0)
	for _, bucket := range []Bucket{BucketSalesRevenue, BucketTaxIncome, BucketPointToken} {
		bal, err := l.Balance(addr, token, bucket)
		if err != nil {
			return nil, err
		}
		total.Add(total, bal)
	}
	return total, nil
}

// EscrowBalance returns the funds locked under a position id.
func (l *Ledger) EscrowBalance(id [32]byte, token string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	normalized, err := normalizeToken(token)
	if err != nil {
		return nil, err
	}
	bal, err := l.state.LedgerEscrowBalance(id, normalized)
	if err != nil {
		return nil, err
	}
	return common.CloneBig(bal), nil
}

// EscrowLock moves amount from the account's available bucket into the escrow
// pot keyed by id. Locked funds are not spendable until released.
func (l *Ledger) EscrowLock(addr [20]byte, id [32]byte, token string, amount *big.Int) error {
	normalized, err := l.check(token, BucketAvailable, amount)
	if err != nil {
		return err
	}
	if common.IsZero(amount) {
		return nil
	}
	if err := l.Debit(addr, normalized, BucketAvailable, amount); err != nil {
		return err
	}
	bal, err := l.state.LedgerEscrowBalance(id, normalized)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(common.CloneBig(bal), amount)
	return l.state.SetLedgerEscrowBalance(id, normalized, next)
}

// EscrowRelease moves amount from the escrow pot keyed by id into the target
// account bucket, failing when the pot is short.
func (l *Ledger) EscrowRelease(id [32]byte, to [20]byte, token string, bucket Bucket, amount *big.Int) error {
	normalized, err := l.check(token, bucket, amount)
	if err != nil {
		return err
	}
	if common.IsZero(amount) {
		return nil
	}
	bal, err := l.state.LedgerEscrowBalance(id, normalized)
	if err != nil {
		return err
	}
	current := common.CloneBig(bal)
	if current.Cmp(amount) < 0 {
		return ErrInsufficientEscrow
	}
	if err := l.state.SetLedgerEscrowBalance(id, normalized, current.Sub(current, amount)); err != nil {
		return err
	}
	return l.Credit(to, normalized, bucket, amount)
}
