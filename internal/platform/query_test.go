package platform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
	"github.com/jonnytest1/commercetools-payone-integration/internal/testutil"
)

func TestPaymentWithCart(t *testing.T) {
	store := testutil.NewMockPaymentStore()
	carts := testutil.NewMockCartStore()
	q := platform.NewQueryExecutor(store, carts)

	p := testutil.NewTestPayment(payment.MethodCreditCard, payment.TransactionAuthorization, 4999, "EUR")
	store.Put(p)
	carts.Put(p.ID, testutil.NewTestCart(4999, "EUR"))

	pwc, err := q.PaymentWithCart(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, pwc.Payment.ID)
	require.NotNil(t, pwc.Cart)
	assert.Equal(t, "DE", pwc.Cart.Country)
}

func TestPaymentWithCart_MissingPayment(t *testing.T) {
	q := platform.NewQueryExecutor(testutil.NewMockPaymentStore(), testutil.NewMockCartStore())

	_, err := q.PaymentWithCart(context.Background(), "nope")
	assert.ErrorIs(t, err, errors.ErrPaymentNotFound)
}

func TestPaymentWithCart_MissingCartPropagates(t *testing.T) {
	store := testutil.NewMockPaymentStore()
	q := platform.NewQueryExecutor(store, testutil.NewMockCartStore())

	p := testutil.NewTestPayment(payment.MethodCreditCard, payment.TransactionAuthorization, 4999, "EUR")
	store.Put(p)

	_, err := q.PaymentWithCart(context.Background(), p.ID)
	assert.ErrorIs(t, err, errors.ErrNoCartLike)
}
