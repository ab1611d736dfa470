package premarket

import (
	"math/big"

	"otcmarket/native/common"
	"otcmarket/native/ledger"
	"otcmarket/native/market"
)

// Delivery drives the post-open settlement transitions: maker delivery of
// point-token equivalent, release of escrowed collateral, and taker claims.
// It shares the offer/stock engine's state, ledger and lock so settlement
// serializes with lifecycle operations.
type Delivery struct {
	engine *Engine
}

// NewDelivery constructs a delivery engine bound to the supplied offer/stock
// engine.
func NewDelivery(engine *Engine) *Delivery {
	return &Delivery{engine: engine}
}

type allocation struct {
	stock *Stock
	take  *big.Int
	value *big.Int
}

// SettleAskMaker delivers the settlement-token equivalent of points for an
// Ask offer. Delivery is allocated to taker stocks in fill order; each stock
// that completes distributes its escrowed payment to the maker, fee and
// referral recipients. Partial delivery across multiple calls is allowed as
// long as the cumulative total never exceeds the filled amount. A zero-point
// call finalizes a fully delivered (or never filled) offer, releasing the
// maker's residual collateral.
func (d *Delivery) SettleAskMaker(caller [20]byte, offerID [32]byte, points *big.Int) error {
	e := d.engine
	if err := e.checkDeps(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if offer.OfferType != OfferAsk {
		return ErrInvalidState
	}
	if offer.Maker != caller {
		return ErrUnauthorized
	}
	if offer.Status == OfferSettled {
		return ErrAlreadySettled
	}
	// A Closed offer stopped taking fills but its filled share still settles.
	if offer.Status != OfferOngoing && offer.Status != OfferClosed {
		return ErrInvalidState
	}
	mkt, err := e.loadMarket(offer.MarketID)
	if err != nil {
		return err
	}
	now := e.now()
	filled := offer.Filled()
	undelivered := new(big.Int).Sub(filled, offer.SettledPoints)

	pts := common.CloneBig(points)
	if pts.Sign() < 0 {
		return ErrInvalidAmount
	}
	if pts.Sign() == 0 {
		// Finalize-only call: valid once the market is open and nothing is
		// left to deliver.
		if !mkt.Open(now) || undelivered.Sign() != 0 {
			return ErrMarketNotSettleable
		}
		return d.finalizeOffer(offer, mkt)
	}
	if !mkt.InSettleWindow(now) {
		return ErrMarketNotSettleable
	}
	if pts.Cmp(undelivered) > 0 {
		return ErrExceedsFilled
	}

	// Plan the allocation against clones before touching any state.
	stockIDs, err := e.state.OfferStocks(offerID)
	if err != nil {
		return err
	}
	remaining := common.CloneBig(pts)
	plan := make([]allocation, 0, len(stockIDs))
	totalValue := big.NewInt(0)
	for _, id := range stockIDs {
		if remaining.Sign() == 0 {
			break
		}
		stock, err := e.loadStock(id)
		if err != nil {
			return err
		}
		if stock.Status == StockAbort || stock.Status == StockFinished {
			continue
		}
		und := stock.Undelivered()
		if und.Sign() == 0 {
			continue
		}
		take := common.CloneBig(und)
		if take.Cmp(remaining) > 0 {
			take = common.CloneBig(remaining)
		}
		value := common.MulDiv(take, mkt.TokenPerPoint, common.PointScale)
		plan = append(plan, allocation{stock: stock, take: take, value: value})
		totalValue.Add(totalValue, value)
		remaining.Sub(remaining, take)
	}
	if remaining.Sign() != 0 {
		return ErrExceedsFilled
	}
	makerBal, err := e.funds.Balance(caller, mkt.SettlementToken, ledger.BucketAvailable)
	if err != nil {
		return err
	}
	if makerBal.Cmp(totalValue) < 0 {
		return ledger.ErrInsufficientBalance
	}

	// Commit.
	if err := e.funds.Debit(caller, mkt.SettlementToken, ledger.BucketAvailable, totalValue); err != nil {
		return err
	}
	for _, alloc := range plan {
		stock := alloc.stock
		stock.DeliveredPoints = new(big.Int).Add(stock.DeliveredPoints, alloc.take)
		stock.ClaimableValue = new(big.Int).Add(stock.ClaimableValue, alloc.value)
		if err := e.funds.Credit(stock.Owner, mkt.SettlementToken, ledger.BucketClaimable, alloc.value); err != nil {
			return err
		}
		if !stock.Maker && stock.Undelivered().Sign() == 0 {
			if err := d.distributePayment(offer, stock, stock.Notional, stock.Fee, stock.ReferrerCut, stock.AuthorityCut); err != nil {
				return err
			}
		}
		if err := e.state.StockPut(stock); err != nil {
			return err
		}
	}
	offer.SettledPoints = new(big.Int).Add(offer.SettledPoints, pts)
	if err := d.releaseMakerCollateral(offer, pts, undelivered); err != nil {
		return err
	}
	if offer.SettledPoints.Cmp(filled) == 0 {
		if err := d.finalizeOffer(offer, mkt); err != nil {
			return err
		}
	} else if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	e.emit(newOfferEvent(EventTypeMakerSettled, offer))
	return nil
}

// SettleAskTaker is the symmetric path for Bid offers: the point seller
// delivers the settlement-token equivalent, the Bid maker's claimable grows,
// and on completion the seller is paid the escrowed notional and recovers
// their collateral.
func (d *Delivery) SettleAskTaker(caller [20]byte, stockID [32]byte, points *big.Int) error {
	e := d.engine
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
	if stock.Maker || stock.StockType != StockAsk {
		return ErrInvalidState
	}
	if stock.Status == StockFinished {
		return ErrAlreadySettled
	}
	if stock.Status != StockInitialized {
		return ErrInvalidState
	}
	offer, err := e.loadOffer(stock.OfferID)
	if err != nil {
		return err
	}
	mkt, err := e.loadMarket(stock.MarketID)
	if err != nil {
		return err
	}
	if !mkt.InSettleWindow(e.now()) {
		return ErrMarketNotSettleable
	}
	pts := common.CloneBig(points)
	if pts.Sign() <= 0 {
		return ErrInvalidAmount
	}
	und := stock.Undelivered()
	if pts.Cmp(und) > 0 {
		return ErrExceedsFilled
	}
	value := common.MulDiv(pts, mkt.TokenPerPoint, common.PointScale)
	bal, err := e.funds.Balance(caller, mkt.SettlementToken, ledger.BucketAvailable)
	if err != nil {
		return err
	}
	if bal.Cmp(value) < 0 {
		return ledger.ErrInsufficientBalance
	}
	makerStock, err := e.loadStock(offer.MakerStock)
	if err != nil {
		return err
	}

	// Commit.
	if err := e.funds.Debit(caller, mkt.SettlementToken, ledger.BucketAvailable, value); err != nil {
		return err
	}
	if err := e.funds.Credit(offer.Maker, mkt.SettlementToken, ledger.BucketClaimable, value); err != nil {
		return err
	}
	stock.DeliveredPoints = new(big.Int).Add(stock.DeliveredPoints, pts)
	makerStock.DeliveredPoints = new(big.Int).Add(makerStock.DeliveredPoints, pts)
	makerStock.ClaimableValue = new(big.Int).Add(makerStock.ClaimableValue, value)
	offer.SettledPoints = new(big.Int).Add(offer.SettledPoints, pts)

	if stock.Undelivered().Sign() == 0 {
		// Seller completed delivery: pay the notional out of the maker's
		// offer escrow and unwind the seller's own pot.
		if err := e.funds.EscrowRelease(offer.ID, stock.Owner, offer.CollateralToken, ledger.BucketSalesRevenue, stock.Notional); err != nil {
			return err
		}
		if err := d.distributeSellerPot(offer, stock, stock.Collateral, stock.Fee, stock.ReferrerCut, stock.AuthorityCut); err != nil {
			return err
		}
		stock.Status = StockFinished
	}
	if err := e.state.StockPut(stock); err != nil {
		return err
	}
	if err := e.state.StockPut(makerStock); err != nil {
		return err
	}
	filled := offer.Filled()
	if offer.SettledPoints.Cmp(filled) == 0 && offer.Status == OfferOngoing {
		if err := d.finalizeOffer(offer, mkt); err != nil {
			return err
		}
	} else if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	e.emit(newStockEvent(EventTypeTakerSettled, stock))
	return nil
}

// CloseBidTaker claims settlement value for a buy-side position: the taker
// of an Ask offer, or the maker of a Bid offer collecting delivered value.
// Within the window it requires complete delivery; after the window lapses it
// resolves defaults, refunding undelivered payment shares and seizing the
// counterparty's collateral as compensation. Idempotent: a second call fails
// with ErrAlreadySettled.
func (d *Delivery) CloseBidTaker(caller [20]byte, stockID [32]byte) error {
	e := d.engine
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
	if stock.StockType != StockBid {
		return ErrInvalidState
	}
	if stock.Claimed || stock.Status == StockFinished {
		return ErrAlreadySettled
	}
	if stock.Status == StockAbort {
		return ErrInvalidState
	}
	offer, err := e.loadOffer(stock.OfferID)
	if err != nil {
		return err
	}
	mkt, err := e.loadMarket(stock.MarketID)
	if err != nil {
		return err
	}
	now := e.now()
	if !mkt.Open(now) {
		return ErrMarketNotSettleable
	}

	if stock.Maker {
		return d.closeBidMaker(offer, stock, mkt, now)
	}

	und := stock.Undelivered()
	if und.Sign() == 0 {
		// Fully delivered: move the accrued claimable value to spendable.
		if err := e.funds.Transfer(caller, ledger.BucketClaimable, caller, ledger.BucketAvailable, mkt.SettlementToken, stock.ClaimableValue); err != nil {
			return err
		}
	} else {
		if mkt.InSettleWindow(now) {
			return ErrNotFullyDelivered
		}
		if err := d.resolveBuyerDefault(offer, stock, mkt, und); err != nil {
			return err
		}
	}
	stock.Claimed = true
	if stock.Status == StockInitialized {
		stock.Status = StockFinished
	}
	if err := e.state.StockPut(stock); err != nil {
		return err
	}
	e.emit(newStockEvent(EventTypeStockClaimed, stock))
	return nil
}

// closeBidMaker settles the Bid-offer maker's own position: claim delivered
// value and, after the window, resolve defaulting sellers and recover the
// residual escrow.
func (d *Delivery) closeBidMaker(offer *Offer, stock *Stock, mkt *market.MarketPlace, now int64) error {
	e := d.engine
	settledInFull := offer.Status == OfferSettled
	if !settledInFull {
		if mkt.InSettleWindow(now) {
			return ErrNotFullyDelivered
		}
		// Window lapsed with sellers still owing delivery: resolve each
		// unfinished seller stock, then recover whatever escrow remains.
		stockIDs, err := e.state.OfferStocks(offer.ID)
		if err != nil {
			return err
		}
		for _, id := range stockIDs {
			seller, err := e.loadStock(id)
			if err != nil {
				return err
			}
			if seller.Status == StockAbort || seller.Status == StockFinished {
				continue
			}
			if err := d.resolveSellerDefault(offer, seller); err != nil {
				return err
			}
			if err := e.state.StockPut(seller); err != nil {
				return err
			}
		}
		if err := d.finalizeOffer(offer, mkt); err != nil {
			return err
		}
	}
	if err := e.funds.Transfer(stock.Owner, ledger.BucketClaimable, stock.Owner, ledger.BucketAvailable, mkt.SettlementToken, stock.ClaimableValue); err != nil {
		return err
	}
	stock.Claimed = true
	stock.Status = StockFinished
	if err := e.state.StockPut(stock); err != nil {
		return err
	}
	e.emit(newStockEvent(EventTypeStockClaimed, stock))
	return nil
}

// resolveBuyerDefault compensates an Ask-offer taker the maker failed to
// deliver to: the delivered fraction of the taker's payment distributes as on
// completion, the rest refunds, and the maker's collateral pays the
// formula-sized penalty. Any partially delivered value is claimed as well.
func (d *Delivery) resolveBuyerDefault(offer *Offer, stock *Stock, mkt *market.MarketPlace, und *big.Int) error {
	e := d.engine
	delivered := common.CloneBig(stock.DeliveredPoints)

	// Distribute the delivered fraction of the payment snapshot, floor per
	// recipient; the refund takes the exact remainder of the pot.
	notionalPart := common.MulDiv(stock.Notional, delivered, stock.Points)
	feePart := common.MulDiv(stock.Fee, delivered, stock.Points)
	referrerPart := common.MulDiv(stock.ReferrerCut, delivered, stock.Points)
	authorityPart := common.MulDiv(stock.AuthorityCut, delivered, stock.Points)
	if err := d.distributePayment(offer, stock, notionalPart, feePart, referrerPart, authorityPart); err != nil {
		return err
	}
	refund, err := e.funds.EscrowBalance(stock.ID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(stock.ID, stock.Owner, offer.CollateralToken, ledger.BucketAvailable, refund); err != nil {
		return err
	}

	// Compensation out of the maker's collateral: the locking formula's
	// share for the undelivered points, capped at what the pot still holds.
	comp := common.BpsShare(common.Notional(und, offer.UnitPrice), offer.CollateralRatioBps)
	if offer.SettleType == SettleProtected {
		comp.Add(comp, common.BpsShare(common.Notional(und, offer.UnitPrice), e.policy.ProtectedBufferBps))
	}
	pot, err := e.funds.EscrowBalance(offer.ID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if comp.Cmp(pot) > 0 {
		comp = pot
	}
	if err := e.funds.EscrowRelease(offer.ID, stock.Owner, offer.CollateralToken, ledger.BucketAvailable, comp); err != nil {
		return err
	}
	if stock.ClaimableValue.Sign() > 0 {
		if err := e.funds.Transfer(stock.Owner, ledger.BucketClaimable, stock.Owner, ledger.BucketAvailable, mkt.SettlementToken, stock.ClaimableValue); err != nil {
			return err
		}
	}
	stock.DeliveredPoints = common.CloneBig(stock.Points)
	offer.SettledPoints = new(big.Int).Add(offer.SettledPoints, und)
	filled := offer.Filled()
	if offer.SettledPoints.Cmp(filled) == 0 && (offer.Status == OfferOngoing || offer.Status == OfferClosed) {
		return d.finalizeOffer(offer, mkt)
	}
	return e.state.OfferPut(offer)
}

// resolveSellerDefault settles a Bid-offer seller who missed the window: the
// delivered fraction is paid out normally, the undelivered collateral share
// is seized for the maker, and the fee/referral snapshot distributes
// pro-rata with any dust refunded to the seller.
func (d *Delivery) resolveSellerDefault(offer *Offer, seller *Stock) error {
	e := d.engine
	delivered := common.CloneBig(seller.DeliveredPoints)
	notionalPart := common.MulDiv(seller.Notional, delivered, seller.Points)
	if err := e.funds.EscrowRelease(offer.ID, seller.Owner, offer.CollateralToken, ledger.BucketSalesRevenue, notionalPart); err != nil {
		return err
	}
	collateralBack := common.MulDiv(seller.Collateral, delivered, seller.Points)
	feePart := common.MulDiv(seller.Fee, delivered, seller.Points)
	referrerPart := common.MulDiv(seller.ReferrerCut, delivered, seller.Points)
	authorityPart := common.MulDiv(seller.AuthorityCut, delivered, seller.Points)
	if err := d.distributeSellerPot(offer, seller, collateralBack, feePart, referrerPart, authorityPart); err != nil {
		return err
	}
	// Whatever remains in the seller's pot is the undelivered collateral
	// share plus dust: seized as the maker's default compensation.
	seized, err := e.funds.EscrowBalance(seller.ID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(seller.ID, offer.Maker, offer.CollateralToken, ledger.BucketAvailable, seized); err != nil {
		return err
	}
	offer.SettledPoints = new(big.Int).Add(offer.SettledPoints, seller.Undelivered())
	seller.DeliveredPoints = common.CloneBig(seller.Points)
	seller.Status = StockFinished
	return nil
}

// distributePayment drains the given amounts from a buyer stock's payment
// pot: notional to the maker's sales revenue, fee to the maker's tax income,
// referral cuts to referrer and authority.
func (d *Delivery) distributePayment(offer *Offer, stock *Stock, notional, fee, referrerCut, authorityCut *big.Int) error {
	e := d.engine
	token := offer.CollateralToken
	if err := e.funds.EscrowRelease(stock.ID, offer.Maker, token, ledger.BucketSalesRevenue, notional); err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(stock.ID, offer.Maker, token, ledger.BucketTaxIncome, fee); err != nil {
		return err
	}
	return d.releaseReferralCuts(stock, token, referrerCut, authorityCut)
}

// distributeSellerPot drains the given amounts from a seller stock's pot:
// collateral back to the seller, fee to the maker's tax income, referral
// cuts to referrer and authority.
func (d *Delivery) distributeSellerPot(offer *Offer, stock *Stock, collateral, fee, referrerCut, authorityCut *big.Int) error {
	e := d.engine
	token := offer.CollateralToken
	if err := e.funds.EscrowRelease(stock.ID, stock.Owner, token, ledger.BucketAvailable, collateral); err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(stock.ID, offer.Maker, token, ledger.BucketTaxIncome, fee); err != nil {
		return err
	}
	return d.releaseReferralCuts(stock, token, referrerCut, authorityCut)
}

func (d *Delivery) releaseReferralCuts(stock *Stock, token string, referrerCut, authorityCut *big.Int) error {
	e := d.engine
	if stock.HasReferrer {
		if err := e.funds.EscrowRelease(stock.ID, stock.Referrer, token, ledger.BucketAvailable, referrerCut); err != nil {
			return err
		}
		return e.funds.EscrowRelease(stock.ID, e.fees.Authority(), token, ledger.BucketAvailable, authorityCut)
	}
	return nil
}

// releaseMakerCollateral returns the maker's escrow for freshly settled
// points, proportional to what the pot still held before this delivery.
func (d *Delivery) releaseMakerCollateral(offer *Offer, pts, undeliveredBefore *big.Int) error {
	e := d.engine
	pot, err := e.funds.EscrowBalance(offer.ID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if pot.Sign() == 0 || undeliveredBefore.Sign() == 0 {
		return nil
	}
	release := common.MulDiv(pot, pts, undeliveredBefore)
	return e.funds.EscrowRelease(offer.ID, offer.Maker, offer.CollateralToken, ledger.BucketAvailable, release)
}

// finalizeOffer releases the offer's residual escrow (unfilled remainder,
// protected buffer, rounding dust) back to the maker, terminalizes the offer
// and finishes the primary maker stock.
func (d *Delivery) finalizeOffer(offer *Offer, mkt *market.MarketPlace) error {
	e := d.engine
	pot, err := e.funds.EscrowBalance(offer.ID, offer.CollateralToken)
	if err != nil {
		return err
	}
	if err := e.funds.EscrowRelease(offer.ID, offer.Maker, offer.CollateralToken, ledger.BucketAvailable, pot); err != nil {
		return err
	}
	offer.Status = OfferSettled
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if offer.MakerStock != ([32]byte{}) && offer.OfferType == OfferAsk {
		makerStock, err := e.loadStock(offer.MakerStock)
		if err != nil {
			return err
		}
		if makerStock.Status == StockInitialized {
			makerStock.Status = StockFinished
			if err := e.state.StockPut(makerStock); err != nil {
				return err
			}
		}
	}
	e.emit(newOfferEvent(EventTypeOfferFinalized, offer))
	return nil
}
