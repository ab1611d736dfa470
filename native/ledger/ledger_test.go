package ledger

import (
	"errors"
	"math/big"
	"testing"
)

type balanceKey struct {
	addr   [20]byte
	token  string
	bucket Bucket
}

type escrowKey struct {
	id    [32]byte
	token string
}

type mockState struct {
	balances map[balanceKey]*big.Int
	escrows  map[escrowKey]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		balances: make(map[balanceKey]*big.Int),
		escrows:  make(map[escrowKey]*big.Int),
	}
}

func (m *mockState) LedgerBalance(addr [20]byte, token string, bucket Bucket) (*big.Int, error) {
	if bal, ok := m.balances[balanceKey{addr, token, bucket}]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetLedgerBalance(addr [20]byte, token string, bucket Bucket, amount *big.Int) error {
	m.balances[balanceKey{addr, token, bucket}] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) LedgerEscrowBalance(id [32]byte, token string) (*big.Int, error) {
	if bal, ok := m.escrows[escrowKey{id, token}]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetLedgerEscrowBalance(id [32]byte, token string, amount *big.Int) error {
	m.escrows[escrowKey{id, token}] = new(big.Int).Set(amount)
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func potID(b byte) [32]byte {
	var out [32]byte
	out[0] = b
	return out
}

func TestCreditDebitRoundTrip(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)

	if err := l.Credit(alice, "usdc", BucketAvailable, big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(alice, "USDC", BucketAvailable, big.NewInt(200)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, err := l.Balance(alice, "usdc", BucketAvailable)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected 300, got %s", bal)
	}
}

func TestDebitInsufficient(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	if err := l.Credit(alice, "USDC", BucketAvailable, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := l.Debit(alice, "USDC", BucketAvailable, big.NewInt(101))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestNegativeAmountRejected(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	if err := l.Credit(alice, "USDC", BucketAvailable, big.NewInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestInvalidBucketRejected(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	if err := l.Credit(alice, "USDC", Bucket("bogus"), big.NewInt(1)); !errors.Is(err, ErrInvalidBucket) {
		t.Fatalf("expected ErrInvalidBucket, got %v", err)
	}
	if err := l.Credit(alice, "  ", BucketAvailable, big.NewInt(1)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTransferBetweenBuckets(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	bob := addr(2)
	if err := l.Credit(alice, "USDC", BucketClaimable, big.NewInt(75)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Transfer(alice, BucketClaimable, bob, BucketAvailable, "USDC", big.NewInt(75)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	from, _ := l.Balance(alice, "USDC", BucketClaimable)
	to, _ := l.Balance(bob, "USDC", BucketAvailable)
	if from.Sign() != 0 || to.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("transfer mismatch: from=%s to=%s", from, to)
	}
}

func TestWithdrawEarnings(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	if err := l.Credit(alice, "USDC", BucketSalesRevenue, big.NewInt(900)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(alice, "USDC", BucketTaxIncome, big.NewInt(9)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	total, err := l.Withdrawable(alice, "USDC")
	if err != nil {
		t.Fatalf("withdrawable: %v", err)
	}
	if total.Cmp(big.NewInt(909)) != 0 {
		t.Fatalf("expected 909 withdrawable, got %s", total)
	}

	if err := l.Withdraw(alice, "USDC", BucketSalesRevenue, big.NewInt(900)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	avail, _ := l.Balance(alice, "USDC", BucketAvailable)
	if avail.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("expected 900 available, got %s", avail)
	}
	remaining, _ := l.Withdrawable(alice, "USDC")
	if remaining.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("expected 9 left withdrawable, got %s", remaining)
	}
}

func TestWithdrawRejectsNonEarningBuckets(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	if err := l.Credit(alice, "USDC", BucketClaimable, big.NewInt(50)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Withdraw(alice, "USDC", BucketClaimable, big.NewInt(50)); !errors.Is(err, ErrInvalidBucket) {
		t.Fatalf("expected ErrInvalidBucket, got %v", err)
	}
	if err := l.Withdraw(alice, "USDC", BucketAvailable, big.NewInt(1)); !errors.Is(err, ErrInvalidBucket) {
		t.Fatalf("expected ErrInvalidBucket, got %v", err)
	}
}

func TestEscrowLockAndRelease(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	bob := addr(2)
	pot := potID(9)

	if err := l.Credit(alice, "USDC", BucketAvailable, big.NewInt(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.EscrowLock(alice, pot, "USDC", big.NewInt(400)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	avail, _ := l.Balance(alice, "USDC", BucketAvailable)
	if avail.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected 600 available, got %s", avail)
	}
	escrow, _ := l.EscrowBalance(pot, "USDC")
	if escrow.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected 400 escrowed, got %s", escrow)
	}

	if err := l.EscrowRelease(pot, bob, "USDC", BucketSalesRevenue, big.NewInt(250)); err != nil {
		t.Fatalf("release: %v", err)
	}
	revenue, _ := l.Balance(bob, "USDC", BucketSalesRevenue)
	if revenue.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected 250 revenue, got %s", revenue)
	}
	escrow, _ = l.EscrowBalance(pot, "USDC")
	if escrow.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected 150 left in pot, got %s", escrow)
	}
}

func TestEscrowReleaseOverdraw(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	pot := potID(9)
	if err := l.Credit(alice, "USDC", BucketAvailable, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.EscrowLock(alice, pot, "USDC", big.NewInt(100)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	err := l.EscrowRelease(pot, alice, "USDC", BucketAvailable, big.NewInt(101))
	if !errors.Is(err, ErrInsufficientEscrow) {
		t.Fatalf("expected ErrInsufficientEscrow, got %v", err)
	}
}

func TestEscrowLockInsufficientAvailable(t *testing.T) {
	l := NewLedger(newMockState())
	alice := addr(1)
	pot := potID(9)
	err := l.EscrowLock(alice, pot, "USDC", big.NewInt(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}
