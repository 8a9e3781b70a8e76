package types

// Event is the canonical payload emitted when an offer changes state: a
// type tag such as "escrow.made" plus string attributes describing the
// record and the amounts involved.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
