package premarket

import "errors"

var (
	ErrNilState   = errors.New("premarket: state not configured")
	ErrNilLedger  = errors.New("premarket: ledger not configured")
	ErrNilMarkets = errors.New("premarket: market registry not configured")
	ErrNilFees    = errors.New("premarket: fee engine not configured")

	// Authorization.
	ErrUnauthorized = errors.New("premarket: unauthorized")

	// State validity.
	ErrInvalidMarket       = errors.New("premarket: market not online")
	ErrMarketNotOnline     = errors.New("premarket: market went offline")
	ErrMarketSettling      = errors.New("premarket: market already open for settlement")
	ErrMarketNotSettleable = errors.New("premarket: market not settleable")
	ErrTokenNotRegistered  = errors.New("premarket: collateral token not registered")
	ErrOfferNotFound       = errors.New("premarket: offer not found")
	ErrStockNotFound       = errors.New("premarket: stock not found")
	ErrInvalidState        = errors.New("premarket: lifecycle state does not permit operation")
	ErrOfferNotListed      = errors.New("premarket: offer is not an open unfilled listing")

	// Quantity.
	ErrInvalidAmount      = errors.New("premarket: amount must be positive")
	ErrInvalidPrice       = errors.New("premarket: price must be positive")
	ErrInvalidRatio       = errors.New("premarket: collateral ratio out of range")
	ErrNotEnoughRemaining = errors.New("premarket: fill exceeds remaining amount")
	ErrExceedsFilled      = errors.New("premarket: settlement exceeds undelivered filled amount")

	// Payment mismatch.
	ErrInsufficientPayment = errors.New("premarket: payment does not match required collateral")

	// Double action.
	ErrAlreadySettled    = errors.New("premarket: already settled or claimed")
	ErrNotFullyDelivered = errors.New("premarket: delivery incomplete inside settlement window")

	// Policy.
	ErrProtectedRequired = errors.New("premarket: market requires protected settlement")
)
