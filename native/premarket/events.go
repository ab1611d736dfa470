package premarket

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"otcmarket/core/types"
)

const (
	EventTypeOfferCreated   = "premarket.offer.created"
	EventTypeTakerFilled    = "premarket.taker.filled"
	EventTypeStockListed    = "premarket.stock.listed"
	EventTypeOfferClosed    = "premarket.offer.closed"
	EventTypeOfferRelisted  = "premarket.offer.relisted"
	EventTypeOfferAborted   = "premarket.offer.aborted"
	EventTypeTakerAborted   = "premarket.taker.aborted"
	EventTypeMakerSettled   = "premarket.maker.settled"
	EventTypeTakerSettled   = "premarket.taker.settled"
	EventTypeStockClaimed   = "premarket.stock.claimed"
	EventTypeOfferFinalized = "premarket.offer.finalized"
)

type premarketEvent struct {
	evt *types.Event
}

func (e premarketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e premarketEvent) Event() *types.Event { return e.evt }

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	if o == nil {
		return nil
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"id":         hex.EncodeToString(o.ID[:]),
			"maker":      hex.EncodeToString(o.Maker[:]),
			"market":     hex.EncodeToString(o.MarketID[:]),
			"token":      o.CollateralToken,
			"points":     formatAmount(o.Points),
			"price":      formatAmount(o.UnitPrice),
			"remaining":  formatAmount(o.Remaining),
			"offerType":  o.OfferType.String(),
			"settleType": o.SettleType.String(),
			"status":     o.Status.String(),
		},
	}
}

func newStockEvent(eventType string, s *Stock) *types.Event {
	if s == nil {
		return nil
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"id":        hex.EncodeToString(s.ID[:]),
			"owner":     hex.EncodeToString(s.Owner[:]),
			"offer":     hex.EncodeToString(s.OfferID[:]),
			"points":    formatAmount(s.Points),
			"delivered": formatAmount(s.DeliveredPoints),
			"stockType": s.StockType.String(),
			"status":    s.Status.String(),
			"maker":     strconv.FormatBool(s.Maker),
		},
	}
}
