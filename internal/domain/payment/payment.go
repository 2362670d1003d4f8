package payment

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
)

// Method identifies the payment method configured on a payment, in the
// platform's "<interface>-<method>" notation.
type Method string

const (
	MethodCreditCard Method = "CREDIT_CARD"
	MethodPaypal     Method = "WALLET-PAYPAL"
	MethodSofort     Method = "BANK_TRANSFER-SOFORTUEBERWEISUNG"
)

// KnownMethods lists every payment method this service can dispatch.
var KnownMethods = []Method{MethodCreditCard, MethodPaypal, MethodSofort}

// TransactionType represents the kind of financial action a transaction performs.
type TransactionType string

const (
	// TransactionAuthorization reserves the amount (gateway preauthorization).
	TransactionAuthorization TransactionType = "Authorization"
	// TransactionCharge captures the amount (gateway authorization).
	TransactionCharge TransactionType = "Charge"
	// TransactionRefund returns a captured amount.
	TransactionRefund TransactionType = "Refund"
)

// TransactionState represents the transaction status in the state machine.
type TransactionState string

const (
	StateInitial TransactionState = "Initial"
	StatePending TransactionState = "Pending"
	StateSuccess TransactionState = "Success"
	StateFailure TransactionState = "Failure"
)

// CanAdvanceTo checks whether the state machine allows moving to newState.
// States only advance: Initial -> Pending -> {Success, Failure}; terminal
// states never regress.
func (s TransactionState) CanAdvanceTo(newState TransactionState) bool {
	transitions := map[TransactionState][]TransactionState{
		StateInitial: {StatePending, StateSuccess, StateFailure},
		StatePending: {StateSuccess, StateFailure},
		StateSuccess: {}, // terminal
		StateFailure: {}, // terminal
	}

	allowed, exists := transitions[s]
	if !exists {
		return false
	}
	for _, a := range allowed {
		if a == newState {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state accepts no further transitions.
func (s TransactionState) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Transaction is one discrete financial action within a Payment. The ID is
// assigned by the platform and stable; InteractionID carries the gateway
// sequence number once a request has been submitted.
type Transaction struct {
	ID            string
	Type          TransactionType
	State         TransactionState
	InteractionID string
	Amount        Amount
	Timestamp     time.Time
}

// Payment is the versioned aggregate owned by the platform store. Every
// mutation is conditioned on Version; the interaction list is the append-only
// audit trail and the sole idempotency ledger.
type Payment struct {
	ID     string
	Version int64

	Method Method

	// InterfaceID is the gateway-side transaction id (PAYONE txid) used to
	// correlate inbound notifications with this payment.
	InterfaceID string

	// Reference is the merchant order reference submitted to the gateway.
	Reference string

	AmountPlanned Amount

	// StatusCode/StatusText mirror the last gateway status on the payment's
	// payment-status interface fields.
	StatusCode string
	StatusText string

	Transactions []Transaction
	Interactions []Interaction

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction returns the transaction with the given id.
func (p *Payment) Transaction(id string) (*Transaction, error) {
	for i := range p.Transactions {
		if p.Transactions[i].ID == id {
			return &p.Transactions[i], nil
		}
	}
	return nil, errors.ErrTransactionNotFound
}

// TransactionByInteractionID returns the transaction whose interaction id
// equals the given gateway sequence number.
func (p *Payment) TransactionByInteractionID(sequenceNumber string) (*Transaction, error) {
	if sequenceNumber == "" {
		return nil, errors.ErrTransactionNotFound
	}
	for i := range p.Transactions {
		if p.Transactions[i].InteractionID == sequenceNumber {
			return &p.Transactions[i], nil
		}
	}
	return nil, errors.ErrTransactionNotFound
}

// PendingTransactions returns the transactions still eligible for dispatch:
// Initial transactions that have never been submitted and Pending ones whose
// interim action may not have been attempted yet. The executor's idempotency
// gate decides whether anything is actually done.
func (p *Payment) PendingTransactions() []Transaction {
	var pending []Transaction
	for _, tx := range p.Transactions {
		if tx.State == StateInitial || tx.State == StatePending {
			pending = append(pending, tx)
		}
	}
	return pending
}

// NextSequenceNumber computes the sequence number for the next outgoing
// gateway request, derived from the count of prior REQUEST interactions so
// numbers are strictly increasing per payment.
func (p *Payment) NextSequenceNumber() string {
	count := 0
	for _, ia := range p.Interactions {
		if ia.Kind == InteractionRequest {
			count++
		}
	}
	return strconv.Itoa(count + 1)
}
