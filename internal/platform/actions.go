package platform

import (
	"time"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
)

// UpdateAction is one element of an optimistic-concurrency update batch.
// Apply mutates the given payment document in place; store adapters call it
// after the version check passed. Batches are applied in order so REQUEST
// comes before the transaction's interaction id within one update.
type UpdateAction interface {
	Apply(p *payment.Payment) error
}

// AddInterfaceInteraction appends an immutable audit record.
type AddInterfaceInteraction struct {
	Interaction payment.Interaction
}

func (a AddInterfaceInteraction) Apply(p *payment.Payment) error {
	ia := a.Interaction
	if ia.Timestamp.IsZero() {
		ia.Timestamp = time.Now()
	}
	p.Interactions = append(p.Interactions, ia)
	return nil
}

// ChangeTransactionState advances a transaction's state. Regressions are
// rejected so a stale attempt can never undo a terminal outcome.
type ChangeTransactionState struct {
	TransactionID string
	State         payment.TransactionState
}

func (a ChangeTransactionState) Apply(p *payment.Payment) error {
	tx, err := p.Transaction(a.TransactionID)
	if err != nil {
		return err
	}
	if tx.State == a.State {
		return nil
	}
	if !tx.State.CanAdvanceTo(a.State) {
		return errors.NewDomainError("invalid_transition",
			"cannot transition transaction "+a.TransactionID+" from "+string(tx.State)+" to "+string(a.State),
			errors.ErrInvalidStateTransition)
	}
	tx.State = a.State
	return nil
}

// ChangeTransactionInteractionID sets the gateway sequence number on a
// transaction, correlating it with the eventual notification.
type ChangeTransactionInteractionID struct {
	TransactionID string
	InteractionID string
}

func (a ChangeTransactionInteractionID) Apply(p *payment.Payment) error {
	tx, err := p.Transaction(a.TransactionID)
	if err != nil {
		return err
	}
	tx.InteractionID = a.InteractionID
	return nil
}

// SetStatusInterfaceCode mirrors the gateway status code on the payment.
type SetStatusInterfaceCode struct {
	Code string
}

func (a SetStatusInterfaceCode) Apply(p *payment.Payment) error {
	p.StatusCode = a.Code
	return nil
}

// SetStatusInterfaceText mirrors the gateway status text on the payment.
type SetStatusInterfaceText struct {
	Text string
}

func (a SetStatusInterfaceText) Apply(p *payment.Payment) error {
	p.StatusText = a.Text
	return nil
}

// ApplyAll runs an action batch against the payment document and bumps its
// version. Store adapters share this so every implementation mutates
// documents the same way.
func ApplyAll(p *payment.Payment, actions []UpdateAction) error {
	for _, action := range actions {
		if err := action.Apply(p); err != nil {
			return err
		}
	}
	p.Version++
	p.UpdatedAt = time.Now()
	return nil
}
