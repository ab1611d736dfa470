package premarket

import (
	"math/big"

	"otcmarket/native/common"
)

// OfferType distinguishes maker intents: Ask sells points, Bid buys them.
type OfferType uint8

const (
	OfferAsk OfferType = iota
	OfferBid
)

// Valid reports whether the offer type value is supported.
func (t OfferType) Valid() bool {
	return t == OfferAsk || t == OfferBid
}

// String returns the canonical lowercase name of the offer type.
func (t OfferType) String() string {
	if t == OfferBid {
		return "bid"
	}
	return "ask"
}

// SettleType selects the collateral-risk policy of an offer. Turbo prefunds
// default risk at creation; Protected posts extra collateral on each relist.
type SettleType uint8

const (
	SettleTurbo SettleType = iota
	SettleProtected
)

// Valid reports whether the settle type value is supported.
func (t SettleType) Valid() bool {
	return t == SettleTurbo || t == SettleProtected
}

// String returns the canonical lowercase name of the settle type.
func (t SettleType) String() string {
	if t == SettleProtected {
		return "protected"
	}
	return "turbo"
}

// OfferStatus represents the lifecycle of an offer. Canceled and Settled are
// terminal for fills; Closed offers (a canceled secondary listing, or a
// primary offer whose maker paused the unfilled remainder) reopen via relist,
// and a closed primary offer still owes delivery for its filled share.
type OfferStatus uint8

const (
	OfferVirgin OfferStatus = iota
	OfferOngoing
	OfferCanceled
	OfferSettled
	OfferClosed
)

// Valid reports whether the offer status value is supported.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferVirgin, OfferOngoing, OfferCanceled, OfferSettled, OfferClosed:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name of the offer status.
func (s OfferStatus) String() string {
	switch s {
	case OfferOngoing:
		return "ongoing"
	case OfferCanceled:
		return "canceled"
	case OfferSettled:
		return "settled"
	case OfferClosed:
		return "closed"
	default:
		return "virgin"
	}
}

// StockStatus represents the lifecycle of a filled position.
type StockStatus uint8

const (
	StockInitialized StockStatus = iota
	StockRelisted
	StockAbort
	StockFinished
)

// Valid reports whether the stock status value is supported.
func (s StockStatus) Valid() bool {
	switch s {
	case StockInitialized, StockRelisted, StockAbort, StockFinished:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name of the stock status.
func (s StockStatus) String() string {
	switch s {
	case StockRelisted:
		return "relisted"
	case StockAbort:
		return "abort"
	case StockFinished:
		return "finished"
	default:
		return "initialized"
	}
}

// StockType mirrors the side the position holder took: Bid positions bought
// points and await delivery, Ask positions sold points and owe delivery.
type StockType uint8

const (
	StockBid StockType = iota
	StockAsk
)

// String returns the canonical lowercase name of the stock type.
func (t StockType) String() string {
	if t == StockAsk {
		return "ask"
	}
	return "bid"
}

// Offer is a maker's standing intent to trade points at a fixed price.
// Points quantities are PointScale-scaled; UnitPrice is settlement-token
// smallest units per whole point. The identifier derives from a persisted
// counter, never from offer contents.
type Offer struct {
	ID                 [32]byte
	Maker              [20]byte
	MarketID           [32]byte
	CollateralToken    string
	Points             *big.Int
	UnitPrice          *big.Int
	CollateralRatioBps uint32
	TaxBps             uint32
	OfferType          OfferType
	SettleType         SettleType
	Remaining          *big.Int
	SettledPoints      *big.Int
	Status             OfferStatus
	// OriginStock links a secondary (relisted) offer back to the stock it
	// resells. Zero for primary offers.
	OriginStock [32]byte
	// MakerStock is the maker's own position created with a primary offer.
	// Zero for secondary offers.
	MakerStock [32]byte
	CreatedAt  int64
}

// Clone returns a deep copy of the offer so callers can safely mutate the
// copy without affecting the stored instance.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Points = common.CloneBig(o.Points)
	clone.UnitPrice = common.CloneBig(o.UnitPrice)
	clone.Remaining = common.CloneBig(o.Remaining)
	clone.SettledPoints = common.CloneBig(o.SettledPoints)
	return &clone
}

// Filled returns the points taken off the offer so far.
func (o *Offer) Filled() *big.Int {
	if o == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(common.CloneBig(o.Points), common.CloneBig(o.Remaining))
}

// Secondary reports whether the offer resells an existing stock.
func (o *Offer) Secondary() bool {
	return o != nil && o.OriginStock != ([32]byte{})
}

// Stock is one party's filled position originating from an offer: the unit
// of settlement and claim. Taker stocks snapshot the exact payment split at
// fill time so later distribution is remainder-free by construction; maker
// stocks carry zero snapshots and track the maker's own position.
type Stock struct {
	ID         [32]byte
	Owner      [20]byte
	OfferID    [32]byte
	MarketID   [32]byte
	Points     *big.Int
	Price      *big.Int
	StockType  StockType
	SettleType SettleType
	Status     StockStatus
	Maker      bool
	// ListedOffer points at the live secondary offer while the stock is
	// Relisted. Zero otherwise.
	ListedOffer [32]byte

	// Payment split snapshot, escrowed under the stock id at fill time.
	Notional     *big.Int
	Collateral   *big.Int
	Fee          *big.Int
	ReferrerCut  *big.Int
	AuthorityCut *big.Int
	Referrer     [20]byte
	HasReferrer  bool

	// Settlement bookkeeping.
	DeliveredPoints *big.Int
	ClaimableValue  *big.Int
	Claimed         bool

	CreatedAt int64
}

// Clone returns a deep copy of the stock.
func (s *Stock) Clone() *Stock {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Points = common.CloneBig(s.Points)
	clone.Price = common.CloneBig(s.Price)
	clone.Notional = common.CloneBig(s.Notional)
	clone.Collateral = common.CloneBig(s.Collateral)
	clone.Fee = common.CloneBig(s.Fee)
	clone.ReferrerCut = common.CloneBig(s.ReferrerCut)
	clone.AuthorityCut = common.CloneBig(s.AuthorityCut)
	clone.DeliveredPoints = common.CloneBig(s.DeliveredPoints)
	clone.ClaimableValue = common.CloneBig(s.ClaimableValue)
	return &clone
}

// Undelivered returns the points not yet settled for this stock.
func (s *Stock) Undelivered() *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(common.CloneBig(s.Points), common.CloneBig(s.DeliveredPoints))
}

// PaymentTotal returns the full amount escrowed under the stock at fill
// time: notional for buy-side positions, posted collateral for sell-side
// positions, plus fee and referral cuts in both cases.
func (s *Stock) PaymentTotal() *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	var total *big.Int
	if s.StockType == StockAsk {
		total = common.CloneBig(s.Collateral)
	} else {
		total = common.CloneBig(s.Notional)
	}
	total.Add(total, common.CloneBig(s.Fee))
	total.Add(total, common.CloneBig(s.ReferrerCut))
	return total.Add(total, common.CloneBig(s.AuthorityCut))
}

// CreateOfferParams carries the maker's intent into CreateOffer.
type CreateOfferParams struct {
	MarketID           [32]byte
	CollateralToken    string
	Points             *big.Int
	UnitPrice          *big.Int
	CollateralRatioBps uint32
	TaxBps             uint32
	OfferType          OfferType
	SettleType         SettleType
}

// Policy holds the engine's configurable risk parameters.
type Policy struct {
	// ProtectedBufferBps sizes the extra collateral a Protected Ask maker
	// prefunds at creation to cover worst-case taker default, as a share of
	// notional.
	ProtectedBufferBps uint32
}
