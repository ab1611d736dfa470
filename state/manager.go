// Package state provides the persistent backend the venue engines run on:
// a thin JSON-over-KV manager satisfying the narrow state interfaces of the
// ledger, market registry, referral engine and premarket engine. Records
// decode fresh on every read, so engines always operate on private copies.
package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"otcmarket/native/ledger"
	"otcmarket/native/market"
	"otcmarket/native/premarket"
	"otcmarket/native/referral"
	"otcmarket/storage"
)

// Manager implements the engine state interfaces over a storage.Database.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getJSON(key string, out interface{}) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

func idKey(prefix string, id [32]byte) string {
	return prefix + hex.EncodeToString(id[:])
}

func addrKey(prefix string, addr [20]byte) string {
	return prefix + hex.EncodeToString(addr[:])
}

// --- Roles and pauses ---

// HasRole reports whether addr carries the named role.
func (m *Manager) HasRole(role string, addr []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ok, err := m.db.Has([]byte("roles/" + role + "/" + hex.EncodeToString(addr)))
	return err == nil && ok
}

// GrantRole assigns the named role to addr.
func (m *Manager) GrantRole(role string, addr []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put([]byte("roles/"+role+"/"+hex.EncodeToString(addr)), []byte{1})
}

// SetPaused toggles the pause flag for a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := []byte("pause/" + module)
	if paused {
		return m.db.Put(key, []byte{1})
	}
	return m.db.Delete(key)
}

// IsPaused implements common.PauseView.
func (m *Manager) IsPaused(module string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ok, err := m.db.Has([]byte("pause/" + module))
	return err == nil && ok
}

// --- ledger.State ---

func ledgerKey(addr [20]byte, token string, bucket ledger.Bucket) string {
	return "ledger/bal/" + hex.EncodeToString(addr[:]) + "/" + token + "/" + string(bucket)
}

func escrowKey(id [32]byte, token string) string {
	return "ledger/escrow/" + hex.EncodeToString(id[:]) + "/" + token
}

func (m *Manager) LedgerBalance(addr [20]byte, token string, bucket ledger.Bucket) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bal := new(big.Int)
	ok, err := m.getJSON(ledgerKey(addr, token, bucket), bal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return bal, nil
}

func (m *Manager) SetLedgerBalance(addr [20]byte, token string, bucket ledger.Bucket, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(ledgerKey(addr, token, bucket), amount)
}

func (m *Manager) LedgerEscrowBalance(id [32]byte, token string) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bal := new(big.Int)
	ok, err := m.getJSON(escrowKey(id, token), bal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return bal, nil
}

func (m *Manager) SetLedgerEscrowBalance(id [32]byte, token string, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(escrowKey(id, token), amount)
}

// --- market.State ---

func (m *Manager) MarketPut(mkt *market.MarketPlace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(idKey("market/place/", mkt.ID), mkt)
}

func (m *Manager) MarketGet(id [32]byte) (*market.MarketPlace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mkt := new(market.MarketPlace)
	ok, err := m.getJSON(idKey("market/place/", id), mkt)
	if err != nil || !ok {
		return nil, false
	}
	return mkt, true
}

func (m *Manager) TokenPut(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put([]byte("market/token/"+symbol), []byte{1})
}

func (m *Manager) TokenExists(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ok, err := m.db.Has([]byte("market/token/" + symbol))
	return err == nil && ok
}

// --- referral.State ---

func (m *Manager) ReferralCodePut(info *referral.ReferralInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON("referral/code/"+info.Code, info)
}

func (m *Manager) ReferralCodeGet(code string) (*referral.ReferralInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := new(referral.ReferralInfo)
	ok, err := m.getJSON("referral/code/"+code, info)
	if err != nil || !ok {
		return nil, false
	}
	return info, true
}

func (m *Manager) ReferralBindingPut(user [20]byte, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(addrKey("referral/bind/", user), code)
}

func (m *Manager) ReferralBindingGet(user [20]byte) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var code string
	ok, err := m.getJSON(addrKey("referral/bind/", user), &code)
	if err != nil || !ok {
		return "", false
	}
	return code, true
}

func (m *Manager) FeeOverridePut(user [20]byte, bps uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(addrKey("referral/feeovr/", user), bps)
}

func (m *Manager) FeeOverrideGet(user [20]byte) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var bps uint32
	ok, err := m.getJSON(addrKey("referral/feeovr/", user), &bps)
	if err != nil || !ok {
		return 0, false
	}
	return bps, true
}

// --- premarket.State ---

func (m *Manager) OfferPut(offer *premarket.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(idKey("premarket/offer/", offer.ID), offer)
}

func (m *Manager) OfferGet(id [32]byte) (*premarket.Offer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	offer := new(premarket.Offer)
	ok, err := m.getJSON(idKey("premarket/offer/", id), offer)
	if err != nil || !ok {
		return nil, false
	}
	return offer, true
}

func (m *Manager) StockPut(stock *premarket.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(idKey("premarket/stock/", stock.ID), stock)
}

func (m *Manager) StockGet(id [32]byte) (*premarket.Stock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stock := new(premarket.Stock)
	ok, err := m.getJSON(idKey("premarket/stock/", id), stock)
	if err != nil || !ok {
		return nil, false
	}
	return stock, true
}

func (m *Manager) OfferStocksAppend(offerID, stockID [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := idKey("premarket/offerstocks/", offerID)
	var ids [][32]byte
	if _, err := m.getJSON(key, &ids); err != nil {
		return err
	}
	ids = append(ids, stockID)
	return m.putJSON(key, ids)
}

func (m *Manager) OfferStocks(offerID [32]byte) ([][32]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids [][32]byte
	if _, err := m.getJSON(idKey("premarket/offerstocks/", offerID), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) nextSeq(key string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var seq uint64
	if _, err := m.getJSON(key, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := m.putJSON(key, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (m *Manager) NextOfferSeq() (uint64, error) {
	return m.nextSeq("premarket/seq/offer")
}

func (m *Manager) NextStockSeq() (uint64, error) {
	return m.nextSeq("premarket/seq/stock")
}
