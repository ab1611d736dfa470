package market

import (
	"encoding/hex"
	"strconv"

	"otcmarket/core/types"
)

const (
	EventTypeMarketCreated       = "market.created"
	EventTypeMarketStatusUpdated = "market.status_updated"
	EventTypeMarketSettlementSet = "market.settlement_published"
)

type coreEvent struct {
	evt *types.Event
}

func (e *coreEvent) EventType() string {
	if e == nil || e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e *coreEvent) Event() *types.Event { return e.evt }

func newMarketEvent(eventType string, m *MarketPlace) *coreEvent {
	if m == nil {
		return nil
	}
	attrs := map[string]string{
		"id":         hex.EncodeToString(m.ID[:]),
		"name":       m.Name,
		"status":     m.Status.String(),
		"fixedRatio": strconv.FormatBool(m.FixedRatio),
	}
	if m.SettlementToken != "" {
		attrs["settlementToken"] = m.SettlementToken
		attrs["tokenPerPoint"] = m.TokenPerPoint.String()
		attrs["tge"] = strconv.FormatInt(m.TGE, 10)
		attrs["settlementPeriod"] = strconv.FormatInt(m.SettlementPeriod, 10)
	}
	return &coreEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}
