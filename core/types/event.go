package types

// Event is one venue state transition rendered for subscribers: an offer
// created, a fill, a settlement. Attributes carry the decimal-string amounts
// and hex identifiers of the transition so consumers never parse engine
// internals.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
