package executor

import (
	"fmt"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/gateway"
)

// clearingTypeFor maps a payment method to the gateway clearing type.
func clearingTypeFor(method payment.Method) (string, error) {
	switch method {
	case payment.MethodCreditCard:
		return gateway.ClearingCreditCard, nil
	case payment.MethodPaypal:
		return gateway.ClearingWallet, nil
	case payment.MethodSofort:
		return gateway.ClearingBankTransfer, nil
	default:
		return "", fmt.Errorf("payment method %q: %w", method, domainErrors.ErrNoExecutor)
	}
}

// methodParams returns the method-specific gateway parameters.
func methodParams(method payment.Method) map[string]string {
	switch method {
	case payment.MethodPaypal:
		return map[string]string{"wallettype": "PPE"}
	case payment.MethodSofort:
		return map[string]string{"onlinebanktransfertype": "PNT"}
	default:
		return nil
	}
}

func baseRequest(requestType string, creds gateway.Credentials, pwc *payment.PaymentWithCart, tx *payment.Transaction) (gateway.Request, error) {
	clearing, err := clearingTypeFor(pwc.Payment.Method)
	if err != nil {
		return gateway.Request{}, err
	}

	amount := tx.Amount
	if amount.ValueCents == 0 {
		amount = pwc.Payment.AmountPlanned
	}

	reference := pwc.Payment.Reference
	if reference == "" {
		reference = pwc.Cart.Reference
	}

	return gateway.Request{
		RequestType:  requestType,
		Credentials:  creds,
		ClearingType: clearing,
		Reference:    reference,
		AmountCents:  amount.ValueCents,
		Currency:     amount.Currency,
		Country:      pwc.Cart.Country,
		Params:       methodParams(pwc.Payment.Method),
	}, nil
}

// PreauthorizationBuilder builds preauthorization requests for Authorization
// transactions.
type PreauthorizationBuilder struct {
	Credentials gateway.Credentials
}

func (b PreauthorizationBuilder) Name() string { return gateway.RequestPreauthorization }

func (b PreauthorizationBuilder) BuildRequest(pwc *payment.PaymentWithCart, tx *payment.Transaction) (gateway.Request, error) {
	return baseRequest(gateway.RequestPreauthorization, b.Credentials, pwc, tx)
}

// AuthorizationBuilder builds authorization (charge) requests for Charge
// transactions.
type AuthorizationBuilder struct {
	Credentials gateway.Credentials
}

func (b AuthorizationBuilder) Name() string { return gateway.RequestAuthorization }

func (b AuthorizationBuilder) BuildRequest(pwc *payment.PaymentWithCart, tx *payment.Transaction) (gateway.Request, error) {
	return baseRequest(gateway.RequestAuthorization, b.Credentials, pwc, tx)
}

// RefundBuilder builds refund requests for Refund transactions. Refunds are
// follow-up calls: they reference the original gateway transaction and carry
// a negative amount.
type RefundBuilder struct {
	Credentials gateway.Credentials
}

func (b RefundBuilder) Name() string { return gateway.RequestRefund }

func (b RefundBuilder) BuildRequest(pwc *payment.PaymentWithCart, tx *payment.Transaction) (gateway.Request, error) {
	req, err := baseRequest(gateway.RequestRefund, b.Credentials, pwc, tx)
	if err != nil {
		return gateway.Request{}, err
	}
	if pwc.Payment.InterfaceID == "" {
		return gateway.Request{}, fmt.Errorf("refund for payment %s: no gateway transaction to reference", pwc.Payment.ID)
	}
	req.TxID = pwc.Payment.InterfaceID
	req.SequenceNumber = pwc.Payment.NextSequenceNumber()
	if req.AmountCents > 0 {
		req.AmountCents = -req.AmountCents
	}
	return req, nil
}
