// Package notification reconciles asynchronous gateway status messages onto
// the payment aggregate.
package notification

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
)

// TxAction is the gateway's action verb describing what happened to a
// previously submitted transaction.
type TxAction string

const (
	ActionAppointed   TxAction = "appointed"
	ActionCapture     TxAction = "capture"
	ActionPaid        TxAction = "paid"
	ActionUnderpaid   TxAction = "underpaid"
	ActionCancelation TxAction = "cancelation"
	ActionFailed      TxAction = "failed"
	ActionRefund      TxAction = "refund"
	ActionDebit       TxAction = "debit"
	ActionTransfer    TxAction = "transfer"
	ActionInvoice     TxAction = "invoice"
	ActionReminder    TxAction = "reminder"
)

// TransactionStatus values carried alongside the action.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// Notification is the parsed inbound gateway message. Field names follow the
// gateway's form keys.
type Notification struct {
	Key               string   `json:"key" form:"key"`
	TxAction          TxAction `json:"txaction" form:"txaction" validate:"required"`
	TransactionStatus string   `json:"transaction_status" form:"transaction_status"`
	Mode              string   `json:"mode" form:"mode"`
	PortalID          string   `json:"portalid" form:"portalid"`
	AID               string   `json:"aid" form:"aid"`
	ClearingType      string   `json:"clearingtype" form:"clearingtype"`
	TxTime            string   `json:"txtime" form:"txtime"`
	Currency          string   `json:"currency" form:"currency"`
	UserID            string   `json:"userid" form:"userid"`
	Country           string   `json:"country" form:"country"`
	TxID              string   `json:"txid" form:"txid" validate:"required"`
	Reference         string   `json:"reference" form:"reference"`
	SequenceNumber    string   `json:"sequencenumber" form:"sequencenumber" validate:"required"`
	Price             string   `json:"price" form:"price"`
	ProductID         string   `json:"productid" form:"productid"`
}

var validate = validator.New()

// ParseForm decodes a gateway notification from its form-encoded body and
// validates the fields the reconciler depends on.
func ParseForm(values url.Values) (*Notification, error) {
	n := &Notification{
		Key:               values.Get("key"),
		TxAction:          TxAction(values.Get("txaction")),
		TransactionStatus: values.Get("transaction_status"),
		Mode:              values.Get("mode"),
		PortalID:          values.Get("portalid"),
		AID:               values.Get("aid"),
		ClearingType:      values.Get("clearingtype"),
		TxTime:            values.Get("txtime"),
		Currency:          values.Get("currency"),
		UserID:            values.Get("userid"),
		Country:           values.Get("country"),
		TxID:              values.Get("txid"),
		Reference:         values.Get("reference"),
		SequenceNumber:    values.Get("sequencenumber"),
		Price:             values.Get("price"),
		ProductID:         values.Get("productid"),
	}
	if err := validate.Struct(n); err != nil {
		return nil, fmt.Errorf("invalid notification: %w", err)
	}
	return n, nil
}

// RawJSON renders the notification for the audit trail.
func (n *Notification) RawJSON() string {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Sprintf("%+v", n)
	}
	return string(b)
}

// TargetState maps the action verb and transaction status onto the four-state
// transaction vocabulary. Unknown actions are an error; the system never
// guesses a state.
func (n *Notification) TargetState() (payment.TransactionState, error) {
	switch n.TxAction {
	case ActionAppointed:
		if n.TransactionStatus == StatusCompleted {
			return payment.StateSuccess, nil
		}
		return payment.StatePending, nil
	case ActionCapture, ActionPaid, ActionDebit, ActionTransfer, ActionInvoice, ActionRefund:
		return payment.StateSuccess, nil
	case ActionUnderpaid, ActionReminder:
		return payment.StatePending, nil
	case ActionCancelation, ActionFailed:
		return payment.StateFailure, nil
	default:
		return "", fmt.Errorf("unknown txaction %q", n.TxAction)
	}
}
