package notification_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/notification"
)

func notificationForm() url.Values {
	return url.Values{
		"key":            {"hashed-key"},
		"txaction":       {"appointed"},
		"mode":           {"test"},
		"portalid":       {"portal-1"},
		"aid":            {"aid-1"},
		"clearingtype":   {"cc"},
		"txtime":         {"1502867520"},
		"currency":       {"EUR"},
		"txid":           {"123456789"},
		"reference":      {"order-42"},
		"sequencenumber": {"0"},
		"price":          {"49.99"},
	}
}

func TestParseForm(t *testing.T) {
	n, err := notification.ParseForm(notificationForm())
	require.NoError(t, err)
	assert.Equal(t, notification.ActionAppointed, n.TxAction)
	assert.Equal(t, "123456789", n.TxID)
	assert.Equal(t, "0", n.SequenceNumber)
	assert.Equal(t, "EUR", n.Currency)
	assert.Equal(t, "49.99", n.Price)
}

func TestParseForm_MissingRequiredFields(t *testing.T) {
	for _, field := range []string{"txaction", "txid", "sequencenumber"} {
		t.Run(field, func(t *testing.T) {
			form := notificationForm()
			form.Del(field)
			_, err := notification.ParseForm(form)
			assert.Error(t, err)
		})
	}
}

func TestTargetState(t *testing.T) {
	cases := []struct {
		action notification.TxAction
		status string
		want   payment.TransactionState
	}{
		{notification.ActionAppointed, "completed", payment.StateSuccess},
		{notification.ActionAppointed, "pending", payment.StatePending},
		{notification.ActionAppointed, "", payment.StatePending},
		{notification.ActionCapture, "", payment.StateSuccess},
		{notification.ActionPaid, "", payment.StateSuccess},
		{notification.ActionDebit, "", payment.StateSuccess},
		{notification.ActionTransfer, "", payment.StateSuccess},
		{notification.ActionInvoice, "", payment.StateSuccess},
		{notification.ActionRefund, "", payment.StateSuccess},
		{notification.ActionUnderpaid, "", payment.StatePending},
		{notification.ActionReminder, "", payment.StatePending},
		{notification.ActionCancelation, "", payment.StateFailure},
		{notification.ActionFailed, "", payment.StateFailure},
	}

	for _, tc := range cases {
		t.Run(string(tc.action)+"/"+tc.status, func(t *testing.T) {
			n := &notification.Notification{TxAction: tc.action, TransactionStatus: tc.status}
			state, err := n.TargetState()
			require.NoError(t, err)
			assert.Equal(t, tc.want, state)
		})
	}
}

func TestTargetState_UnknownAction(t *testing.T) {
	n := &notification.Notification{TxAction: "vauthorization"}
	_, err := n.TargetState()
	assert.Error(t, err)
}

func TestRawJSON_RoundTrips(t *testing.T) {
	n, err := notification.ParseForm(notificationForm())
	require.NoError(t, err)

	raw := n.RawJSON()
	assert.Contains(t, raw, `"txaction":"appointed"`)
	assert.Contains(t, raw, `"txid":"123456789"`)
}
