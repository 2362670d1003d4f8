package payment

import "time"

// InteractionKind identifies the schema of an interface interaction record.
type InteractionKind string

const (
	InteractionRequest      InteractionKind = "PAYONE_INTERACTION_REQUEST"
	InteractionResponse     InteractionKind = "PAYONE_INTERACTION_RESPONSE"
	InteractionRedirect     InteractionKind = "PAYONE_INTERACTION_REDIRECT"
	InteractionNotification InteractionKind = "PAYONE_INTERACTION_NOTIFICATION"
)

// InteractionKinds lists every interaction schema the service appends.
var InteractionKinds = []InteractionKind{
	InteractionRequest,
	InteractionResponse,
	InteractionRedirect,
	InteractionNotification,
}

// Interaction is an immutable audit record appended to a payment. Records are
// never mutated or deleted; new facts are always appended. Which fields are
// set depends on the kind.
type Interaction struct {
	ID   string
	Kind InteractionKind

	// TypeID is the store-specific schema id resolved through the type cache.
	TypeID string

	TransactionID string
	Timestamp     time.Time

	// Request holds the raw outgoing gateway request (kind REQUEST).
	Request string
	// Response holds the raw gateway response (kinds RESPONSE, REDIRECT).
	Response string
	// RedirectURL holds the consumer redirect target (kind REDIRECT).
	RedirectURL string
	// Notification holds the raw inbound notification body (kind NOTIFICATION).
	Notification string
	// SequenceNumber correlates the record with the gateway's per-payment
	// counter (kinds REQUEST, NOTIFICATION).
	SequenceNumber string
	// TxAction is the notification's action verb (kind NOTIFICATION).
	TxAction string
}

// InteractionsOfKind returns the ordered interactions matching any of the
// given kinds.
func (p *Payment) InteractionsOfKind(kinds ...InteractionKind) []Interaction {
	var out []Interaction
	for _, ia := range p.Interactions {
		for _, k := range kinds {
			if ia.Kind == k {
				out = append(out, ia)
				break
			}
		}
	}
	return out
}

// HasInteractionForTransaction reports whether any interaction of the given
// kinds references the transaction id.
func (p *Payment) HasInteractionForTransaction(transactionID string, kinds ...InteractionKind) bool {
	for _, ia := range p.InteractionsOfKind(kinds...) {
		if ia.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// HasNotificationWithSequence reports whether a NOTIFICATION interaction with
// the given sequence number was already recorded. When txAction is non-empty
// the action verb must match too, so distinct actions sharing a sequence
// number (e.g. appointed then paid) are not treated as duplicates.
func (p *Payment) HasNotificationWithSequence(sequenceNumber, txAction string) bool {
	for _, ia := range p.InteractionsOfKind(InteractionNotification) {
		if ia.SequenceNumber != sequenceNumber {
			continue
		}
		if txAction == "" || ia.TxAction == txAction {
			return true
		}
	}
	return false
}
