// Package premarket implements the venue core: the Offer/Stock lifecycle
// engine and the post-open delivery engine. Offers are maker intents filled
// in partial amounts by takers; stocks are the resulting positions. All
// collateral moves through the balance ledger's escrow pots and every
// operation is validated in full before any state is touched.
package premarket

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"otcmarket/core/events"
	"otcmarket/core/types"
	"otcmarket/native/common"
	"otcmarket/native/ident"
	"otcmarket/native/ledger"
	"otcmarket/native/market"
	"otcmarket/native/referral"
)

const moduleName = "premarket"

// maxRatioBps caps collateral ratios at 1000%.
const maxRatioBps = 10 * common.RatioScale

// State is the persistence surface the engine requires. Sequence counters
// are persisted and monotonic so id derivation replays deterministically.
type State interface {
	OfferPut(*Offer) error
	OfferGet(id [32]byte) (*Offer, bool)
	StockPut(*Stock) error
	StockGet(id [32]byte) (*Stock, bool)
	OfferStocksAppend(offerID, stockID [32]byte) error
	OfferStocks(offerID [32]byte) ([][32]byte, error)
	NextOfferSeq() (uint64, error)
	NextStockSeq() (uint64, error)
	TokenExists(symbol string) bool
}

// MarketView is the read surface of the market registry.
type MarketView interface {
	Get(id [32]byte) (*market.MarketPlace, error)
}

// FeeView is the read surface of the fee & referral engine.
type FeeView interface {
	PlatformFeeRate(user [20]byte) (uint32, bool)
	ReferralSplit(user [20]byte) (*referral.ReferralInfo, bool)
	Authority() [20]byte
}

// Engine owns the offer/stock state machines and the collateral accounting
// around them. A single mutex serializes every state-mutating operation, and
// each operation validates against loaded clones before persisting, so a
// failed call leaves no partial state behind.
type Engine struct {
	mu      sync.Mutex
	state   State
	markets MarketView
	fees    FeeView
	funds   *ledger.Ledger
	policy  Policy
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewEngine wires the offer/stock engine to its collaborators.
func NewEngine(state State, markets MarketView, fees FeeView, funds *ledger.Ledger, policy Policy) *Engine {
	return &Engine{
		state:   state,
		markets: markets,
		fees:    fees,
		funds:   funds,
		policy:  policy,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
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

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(premarketEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) checkDeps() error {
	switch {
	case e == nil || e.state == nil:
		return ErrNilState
	case e.funds == nil:
		return ErrNilLedger
	case e.markets == nil:
		return ErrNilMarkets
	case e.fees == nil:
		return ErrNilFees
	default:
		return common.Guard(e.pauses, moduleName)
	}
}

func (e *Engine) loadOffer(id [32]byte) (*Offer, error) {
	offer, ok := e.state.OfferGet(id)
	if !ok {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

func (e *Engine) loadStock(id [32]byte) (*Stock, error) {
	stock, ok := e.state.StockGet(id)
	if !ok {
		return nil, ErrStockNotFound
	}
	return stock, nil
}

// loadMarket reads the registry record fresh; the open flag is never cached
// across calls.
func (e *Engine) loadMarket(id [32]byte) (*market.MarketPlace, error) {
	mkt, err := e.markets.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMarket, err)
	}
	return mkt, nil
}

// requirePayment rejects any over- or underpayment against the computed
// requirement, then verifies the payer can actually fund it.
func (e *Engine) requirePayment(payer [20]byte, token string, required, payment *big.Int) error {
	if common.CloneBig(payment).Cmp(required) != 0 {
		return fmt.Errorf("%w: need %s got %s", ErrInsufficientPayment, required, common.CloneBig(payment))
	}
	if required.Sign() == 0 {
		return nil
	}
	bal, err := e.funds.Balance(payer, token, ledger.BucketAvailable)
	if err != nil {
		return err
	}
	if bal.Cmp(required) < 0 {
		return ledger.ErrInsufficientBalance
	}
	return nil
}

// CreateOffer posts a maker intent and locks its collateral. The returned
// stock is the maker's own position over the full amount.
func (e *Engine) CreateOffer(caller [20]byte, params CreateOfferParams, payment *big.Int) (*Offer, *Stock, error) {
	if err := e.checkDeps(); err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !params.OfferType.Valid() || !params.SettleType.Valid() {
		return nil, nil, ErrInvalidState
	}
	mkt, err := e.loadMarket(params.MarketID)
	if err != nil {
		return nil, nil, err
	}
	if mkt.Status != market.StatusOnline {
		return nil, nil, ErrInvalidMarket
	}
	if mkt.FixedRatio && params.SettleType != SettleProtected {
		return nil, nil, ErrProtectedRequired
	}
	token := strings.ToUpper(strings.TrimSpace(params.CollateralToken))
	if token == "" || !e.state.TokenExists(token) {
		return nil, nil, fmt.Errorf("%w: %s", ErrTokenNotRegistered, params.CollateralToken)
	}
	if common.IsZero(params.Points) || params.Points.Sign() < 0 {
		return nil, nil, ErrInvalidAmount
	}
	if common.IsZero(params.UnitPrice) || params.UnitPrice.Sign() < 0 {
		return nil, nil, ErrInvalidPrice
	}
	if params.CollateralRatioBps == 0 || params.CollateralRatioBps > maxRatioBps {
		return nil, nil, ErrInvalidRatio
	}
	if params.TaxBps > common.RatioScale {
		return nil, nil, ErrInvalidRatio
	}
	notional := common.Notional(params.Points, params.UnitPrice)
	if notional.Sign() == 0 {
		return nil, nil, ErrInvalidAmount
	}
	required := common.BpsShare(notional, params.CollateralRatioBps)
	if params.OfferType == OfferAsk && params.SettleType == SettleProtected {
		required.Add(required, common.BpsShare(notional, e.policy.ProtectedBufferBps))
	}
	if err := e.requirePayment(caller, token, required, payment); err != nil {
		return nil, nil, err
	}

	offerSeq, err := e.state.NextOfferSeq()
	if err != nil {
		return nil, nil, err
	}
	stockSeq, err := e.state.NextStockSeq()
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	offer := &Offer{
		ID:                 ident.OfferID(offerSeq),
		Maker:              caller,
		MarketID:           params.MarketID,
		CollateralToken:    token,
		Points:             common.CloneBig(params.Points),
		UnitPrice:          common.CloneBig(params.UnitPrice),
		CollateralRatioBps: params.CollateralRatioBps,
		TaxBps:             params.TaxBps,
		OfferType:          params.OfferType,
		SettleType:         params.SettleType,
		Remaining:          common.CloneBig(params.Points),
		SettledPoints:      big.NewInt(0),
		Status:             OfferOngoing,
		CreatedAt:          now,
	}
	makerType := StockAsk
	if params.OfferType == OfferBid {
		makerType = StockBid
	}
	stock := &Stock{
		ID:              ident.StockID(stockSeq),
		Owner:           caller,
		OfferID:         offer.ID,
		MarketID:        params.MarketID,
		Points:          common.CloneBig(params.Points),
		Price:           common.CloneBig(params.UnitPrice),
		StockType:       makerType,
		SettleType:      params.SettleType,
		Status:          StockInitialized,
		Maker:           true,
		Notional:        big.NewInt(0),
		Collateral:      big.NewInt(0),
		Fee:             big.NewInt(0),
		ReferrerCut:     big.NewInt(0),
		AuthorityCut:    big.NewInt(0),
		DeliveredPoints: big.NewInt(0),
		ClaimableValue:  big.NewInt(0),
		CreatedAt:       now,
	}
	offer.MakerStock = stock.ID
	if err := e.funds.EscrowLock(caller, offer.ID, token, required); err != nil {
		return nil, nil, err
	}
	if err := e.state.OfferPut(offer); err != nil {
		return nil, nil, err
	}
	if err := e.state.StockPut(stock); err != nil {
		return nil, nil, err
	}
	e.emit(newOfferEvent(EventTypeOfferCreated, offer))
	return offer.Clone(), stock.Clone(), nil
}

// CreateTaker fills an offer in a partial amount. The taker's full payment
// (notional or collateral, plus fee and referral cuts) is escrowed under the
// new stock until settlement or abort; the exact split is snapshotted on the
// stock so distribution never loses or creates a unit.
func (e *Engine) CreateTaker(caller [20]byte, offerID [32]byte, fillPoints, payment *big.Int) (*Stock, error) {
	if err := e.checkDeps(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	offer, err := e.loadOffer(offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != OfferOngoing {
		return nil, ErrInvalidState
	}
	mkt, err := e.loadMarket(offer.MarketID)
	if err != nil {
		return nil, err
	}
	if mkt.Status != market.StatusOnline {
		return nil, ErrMarketNotOnline
	}
	now := e.now()
	if mkt.Open(now) {
		return nil, ErrMarketSettling
	}
	if common.IsZero(fillPoints) || fillPoints.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if fillPoints.Cmp(offer.Remaining) > 0 {
		return nil, ErrNotEnoughRemaining
	}
	notional := common.Notional(fillPoints, offer.UnitPrice)
	if notional.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	feeBps := offer.TaxBps
	if override, ok := e.fees.PlatformFeeRate(caller); ok {
		feeBps = override
	}
	fee := common.BpsShare(notional, feeBps)
	referrerCut := big.NewInt(0)
	authorityCut := big.NewInt(0)
	var referrer [20]byte
	hasReferrer := false
	if info, bound := e.fees.ReferralSplit(caller); bound {
		referrerCut = common.BpsShare(notional, info.ReferrerBps)
		authorityCut = common.BpsShare(notional, info.AuthorityBps)
		referrer = info.Referrer
		hasReferrer = true
	}
	takerType := StockBid
	collateral := big.NewInt(0)
	principal := notional
	if offer.OfferType == OfferBid {
		takerType = StockAsk
		collateral = common.BpsShare(notional, offer.CollateralRatioBps)
		principal = collateral
	}
	total := new(big.Int).Add(common.CloneBig(principal), fee)
	total.Add(total, referrerCut)
	total.Add(total, authorityCut)
	if err := e.requirePayment(caller, offer.CollateralToken, total, payment); err != nil {
		return nil, err
	}

	stockSeq, err := e.state.NextStockSeq()
	if err != nil {
		return nil, err
	}
	stock := &Stock{
		ID:              ident.StockID(stockSeq),
		Owner:           caller,
		OfferID:         offer.ID,
		MarketID:        offer.MarketID,
		Points:          common.CloneBig(fillPoints),
		Price:           common.CloneBig(offer.UnitPrice),
		StockType:       takerType,
		SettleType:      offer.SettleType,
		Status:          StockInitialized,
		Notional:        notional,
		Collateral:      collateral,
		Fee:             fee,
		ReferrerCut:     referrerCut,
		AuthorityCut:    authorityCut,
		Referrer:        referrer,
		HasReferrer:     hasReferrer,
		DeliveredPoints: big.NewInt(0),
		ClaimableValue:  big.NewInt(0),
		CreatedAt:       now,
	}
	if err := e.funds.EscrowLock(caller, stock.ID, offer.CollateralToken, total); err != nil {
		return nil, err
	}
	offer.Remaining = new(big.Int).Sub(offer.Remaining, fillPoints)
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	if err := e.state.StockPut(stock); err != nil {
		return nil, err
	}
	if err := e.state.OfferStocksAppend(offer.ID, stock.ID); err != nil {
		return nil, err
	}
	e.emit(newStockEvent(EventTypeTakerFilled, stock))
	return stock.Clone(), nil
}

// ListOffer converts a held position into a new secondary Ask offer so the
// holder can resell before the market opens. Protected positions post extra
// ratio-adjusted collateral; Turbo positions list free because default risk
// was prefunded at creation.
func (e *Engine) ListOffer(caller [20]byte, stockID [32]byte, price *big.Int, ratioBps uint32, payment *big.Int) (*Offer, error) {
	if err := e.checkDeps(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stock, err := e.loadStock(stockID)
	if err != nil {
		return nil, err
	}
	if stock.Owner != caller {
		return nil, ErrUnauthorized
	}
	if stock.Maker || stock.StockType != StockBid {
		return nil, ErrInvalidState
	}
	if stock.Status != StockInitialized {
		return nil, ErrInvalidState
	}
	origin, err := e.loadOffer(stock.OfferID)
	if err != nil {
		return nil, err
	}
	mkt, err := e.loadMarket(stock.MarketID)
	if err != nil {
		return nil, err
	}
	if mkt.Status != market.StatusOnline {
		return nil, ErrMarketNotOnline
	}
	if mkt.Open(e.now()) {
		return nil, ErrMarketSettling
	}
	if common.IsZero(price) || price.Sign() < 0 {
		return nil, ErrInvalidPrice
	}
	if ratioBps == 0 || ratioBps > maxRatioBps {
		return nil, ErrInvalidRatio
	}
	notional := common.Notional(stock.Points, price)
	if notional.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	extra := big.NewInt(0)
	if stock.SettleType == SettleProtected {
		extra = common.BpsShare(notional, ratioBps)
	}
	if err := e.requirePayment(caller, origin.CollateralToken, extra, payment); err != nil {
		return nil, err
	}

	offerSeq, err := e.state.NextOfferSeq()
	if err != nil {
		return nil, err
	}
	offer := &Offer{
		ID:                 ident.OfferID(offerSeq),
		Maker:              caller,
		MarketID:           stock.MarketID,
		CollateralToken:    origin.CollateralToken,
		Points:             common.CloneBig(stock.Points),
		UnitPrice:          common.CloneBig(price),
		CollateralRatioBps: ratioBps,
		TaxBps:             origin.TaxBps,
		OfferType:          OfferAsk,
		SettleType:         stock.SettleType,
		Remaining:          common.CloneBig(stock.Points),
		SettledPoints:      big.NewInt(0),
		Status:             OfferOngoing,
		OriginStock:        stock.ID,
		CreatedAt:          e.now(),
	}
	if err := e.funds.EscrowLock(caller, offer.ID, origin.CollateralToken, extra); err != nil {
		return nil, err
	}
	stock.Status = StockRelisted
	stock.ListedOffer = offer.ID
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	if err := e.state.StockPut(stock); err != nil {
		return nil, err
	}
	e.emit(newStockEvent(EventTypeStockListed, stock))
	return offer.Clone(), nil
}

// remainingCollateral sizes the escrow share backing the offer's unfilled
// points under its creation formula.
func (e *Engine) remainingCollateral(offer *Offer) *big.Int {
	notional := common.Notional(offer.Remaining, offer.UnitPrice)
	share := common.BpsShare(notional, offer.CollateralRatioBps)
	if offer.OfferType == OfferAsk && offer.SettleType == SettleProtected && !offer.Secondary() {
		share.Add(share, common.BpsShare(notional, e.policy.ProtectedBufferBps))
	}
	return share
}

// closePrimaryOffer pauses a primary Ask offer's unfilled remainder: new
// fills stop and the collateral backing the remaining points unlocks. The
// filled share stays escrowed and deliverable once the market opens.
func (e *Engine) closePrimaryOffer(caller [20]byte, offer *Offer) error {
	if offer.OfferType != OfferAsk {
		return ErrInvalidState
	}
	if offer.Status != OfferOngoing {
		return ErrInvalidState
	}
	mkt, err := e.loadMarket(offer.MarketID)
	if err != nil {
		return err
	}
	if mkt.Open(e.now()) {
		return ErrMarketSettling
	}
	release := e.remainingCollateral(offer)
	pot, err := e.funds.EscrowBalance(offer.ID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if release.Cmp(pot) > 0 {
		release = pot
	}
	if err := e.funds.EscrowRelease(offer.ID, caller, offer.CollateralToken, ledger.BucketAvailable, release); err != nil {
		return err
	}
	offer.Status = OfferClosed
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	e.emit(newOfferEvent(EventTypeOfferClosed, offer))
	return nil
}

// relistPrimaryOffer reopens a closed primary Ask offer for fills, re-locking
// the collateral for the unfilled remainder. Symmetric to closePrimaryOffer.
func (e *Engine) relistPrimaryOffer(caller [20]byte, offer *Offer, payment *big.Int) error {
	if offer.OfferType != OfferAsk || offer.Status != OfferClosed {
		return ErrInvalidState
	}
	mkt, err := e.loadMarket(offer.MarketID)
	if err != nil {
		return err
	}
	if mkt.Status != market.StatusOnline {
		return ErrMarketNotOnline
	}
	if mkt.Open(e.now()) {
		return ErrMarketSettling
	}
	required := e.remainingCollateral(offer)
	if err := e.requirePayment(caller, offer.CollateralToken, required, payment); err != nil {
		return err
	}
	if err := e.funds.EscrowLock(caller, offer.ID, offer.CollateralToken, required); err != nil {
		return err
	}
	offer.Status = OfferOngoing
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	e.emit(newOfferEvent(EventTypeOfferRelisted, offer))
	return nil
}

// CloseOffer cancels a still-unfilled secondary offer, releasing the extra
// collateral posted at listing and returning the stock to Initialized. Called
// with the maker stock of a primary Ask offer it instead pauses the offer's
// unfilled remainder, unlocking its collateral share while the filled share
// stays deliverable.
func (e *Engine) CloseOffer(caller [20]byte, stockID, offerID [32]byte) error {
	if err := e.checkDeps(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stock, err := e.loadStock(stockID)
	if err != nil {
		return err
	}
	if stock.Owner != caller {
		return ErrUnauthorized
	}
	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if stock.Maker && offer.MakerStock == stockID {
		return e.closePrimaryOffer(caller, offer)
	}
	if offer.OriginStock != stockID {
		return ErrOfferNotListed
	}
	if offer.Status != OfferOngoing || offer.Remaining.Cmp(offer.Points) != 0 {
		return ErrOfferNotListed
	}
	if stock.Status != StockRelisted {
		return ErrInvalidState
	}
	pot, err := e.funds.EscrowBalance(offerID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(offerID, caller, offer.CollateralToken, ledger.BucketAvailable, pot); err != nil {
		return err
	}
	offer.Status = OfferCanceled
	stock.Status = StockInitialized
	stock.ListedOffer = [32]byte{}
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if err := e.state.StockPut(stock); err != nil {
		return err
	}
	e.emit(newOfferEvent(EventTypeOfferClosed, offer))
	return nil
}

// RelistOffer reopens a previously closed secondary offer, re-locking the
// same extra collateral. Symmetric to ListOffer. Called with the maker stock
// of a closed primary Ask offer it re-locks the unfilled remainder's
// collateral and resumes fills.
func (e *Engine) RelistOffer(caller [20]byte, stockID, offerID [32]byte, payment *big.Int) error {
	if err := e.checkDeps(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stock, err := e.loadStock(stockID)
	if err != nil {
		return err
	}
	if stock.Owner != caller {
		return ErrUnauthorized
	}
	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if stock.Maker && offer.MakerStock == stockID {
		return e.relistPrimaryOffer(caller, offer, payment)
	}
	if offer.OriginStock != stockID {
		return ErrOfferNotListed
	}
	if offer.Status != OfferCanceled || stock.Status != StockInitialized {
		return ErrInvalidState
	}
	mkt, err := e.loadMarket(stock.MarketID)
	if err != nil {
		return err
	}
	if mkt.Status != market.StatusOnline {
		return ErrMarketNotOnline
	}
	if mkt.Open(e.now()) {
		return ErrMarketSettling
	}
	extra := big.NewInt(0)
	if offer.SettleType == SettleProtected {
		extra = common.BpsShare(common.Notional(offer.Points, offer.UnitPrice), offer.CollateralRatioBps)
	}
	if err := e.requirePayment(caller, offer.CollateralToken, extra, payment); err != nil {
		return err
	}
	if err := e.funds.EscrowLock(caller, offer.ID, offer.CollateralToken, extra); err != nil {
		return err
	}
	offer.Status = OfferOngoing
	stock.Status = StockRelisted
	stock.ListedOffer = offer.ID
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if err := e.state.StockPut(stock); err != nil {
		return err
	}
	e.emit(newOfferEvent(EventTypeOfferRelisted, offer))
	return nil
}

// AbortAskOffer is the maker's pre-open exit from a primary Ask offer: the
// whole offer escrow refunds to the maker and the offer terminates. The
// market-open flag is read fresh at call time; once settlement parameters are
// live the abort path closes for good.
func (e *Engine) AbortAskOffer(caller [20]byte, stockID, offerID [32]byte) error {
	if err := e.checkDeps(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if offer.OfferType != OfferAsk || offer.Secondary() {
		return ErrInvalidState
	}
	if offer.Maker != caller {
		return ErrUnauthorized
	}
	if offer.Status != OfferOngoing && offer.Status != OfferClosed {
		return ErrInvalidState
	}
	stock, err := e.loadStock(stockID)
	if err != nil {
		return err
	}
	if !stock.Maker || stock.OfferID != offerID {
		return ErrInvalidState
	}
	mkt, err := e.loadMarket(offer.MarketID)
	if err != nil {
		return err
	}
	if mkt.Open(e.now()) {
		return ErrMarketSettling
	}
	pot, err := e.funds.EscrowBalance(offerID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(offerID, caller, offer.CollateralToken, ledger.BucketAvailable, pot); err != nil {
		return err
	}
	offer.Status = OfferCanceled
	stock.Status = StockAbort
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if err := e.state.StockPut(stock); err != nil {
		return err
	}
	e.emit(newOfferEvent(EventTypeOfferAborted, offer))
	return nil
}

// AbortBidTaker is the taker's pre-open exit: the full payment escrowed
// under the stock refunds to the taker and the points return to the offer's
// remaining amount. A relisted stock first auto-cancels its own unfilled
// secondary listing.
func (e *Engine) AbortBidTaker(caller [20]byte, stockID, offerID [32]byte) error {
	if err := e.checkDeps(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stock, err := e.loadStock(stockID)
	if err != nil {
		return err
	}
	if stock.Owner != caller {
		return ErrUnauthorized
	}
	if stock.Maker || stock.OfferID != offerID {
		return ErrInvalidState
	}
	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	mkt, err := e.loadMarket(stock.MarketID)
	if err != nil {
		return err
	}
	if mkt.Open(e.now()) {
		return ErrMarketSettling
	}

	var listing *Offer
	switch stock.Status {
	case StockInitialized:
	case StockRelisted:
		listing, err = e.loadOffer(stock.ListedOffer)
		if err != nil {
			return err
		}
		if listing.Status != OfferOngoing || listing.Remaining.Cmp(listing.Points) != 0 {
			// Secondary takers must abort first so the listing drains back
			// to unfilled.
			return ErrInvalidState
		}
	default:
		return ErrInvalidState
	}

	if listing != nil {
		pot, err := e.funds.EscrowBalance(listing.ID, listing.CollateralToken)
		if err != nil {
			return err
		}
		if err := e.funds.EscrowRelease(listing.ID, caller, listing.CollateralToken, ledger.BucketAvailable, pot); err != nil {
			return err
		}
		listing.Status = OfferCanceled
		if err := e.state.OfferPut(listing); err != nil {
			return err
		}
	}
	pot, err := e.funds.EscrowBalance(stockID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(stockID, caller, offer.CollateralToken, ledger.BucketAvailable, pot); err != nil {
		return err
	}
	if offer.Status == OfferOngoing || offer.Status == OfferClosed {
		offer.Remaining = new(big.Int).Add(offer.Remaining, stock.Points)
		if err := e.state.OfferPut(offer); err != nil {
			return err
		}
	}
	stock.Status = StockAbort
	stock.ListedOffer = [32]byte{}
	if err := e.state.StockPut(stock); err != nil {
		return err
	}
	e.emit(newStockEvent(EventTypeTakerAborted, stock))
	return nil
}

// GetOffer returns a snapshot of an offer by id.
func (e *Engine) GetOffer(id [32]byte) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	offer, err := e.loadOffer(id)
	if err != nil {
		return nil, err
	}
	return offer.Clone(), nil
}

// GetStock returns a snapshot of a stock by id.
func (e *Engine) GetStock(id [32]byte) (*Stock, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	stock, err := e.loadStock(id)
	if err != nil {
		return nil, err
	}
	return stock.Clone(), nil
}
