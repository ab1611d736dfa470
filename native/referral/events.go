package referral

import (
	"encoding/hex"
	"strconv"

	"otcmarket/core/types"
)

const (
	EventTypeCodeRegistered = "referral.code_registered"
	EventTypeCodeBound      = "referral.code_bound"
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

func newCodeEvent(eventType string, info *ReferralInfo) *coreEvent {
	if info == nil {
		return nil
	}
	return &coreEvent{evt: &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"code":         info.Code,
			"referrer":     hex.EncodeToString(info.Referrer[:]),
			"referrerBps":  strconv.FormatUint(uint64(info.ReferrerBps), 10),
			"authorityBps": strconv.FormatUint(uint64(info.AuthorityBps), 10),
		},
	}}
}

func newBindEvent(user [20]byte, info *ReferralInfo) *coreEvent {
	if info == nil {
		return nil
	}
	return &coreEvent{evt: &types.Event{
		Type: EventTypeCodeBound,
		Attributes: map[string]string{
			"code":     info.Code,
			"user":     hex.EncodeToString(user[:]),
			"referrer": hex.EncodeToString(info.Referrer[:]),
		},
	}}
}
