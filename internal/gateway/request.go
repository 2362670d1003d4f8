package gateway

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Request types accepted by the gateway's server API.
const (
	RequestPreauthorization = "preauthorization"
	RequestAuthorization    = "authorization"
	RequestRefund           = "refund"
)

// Clearing types per payment method.
const (
	ClearingCreditCard   = "cc"
	ClearingWallet       = "wlt"
	ClearingBankTransfer = "sb"
)

// Credentials identify one merchant account (tenant) at the gateway.
type Credentials struct {
	MerchantID   string
	PortalID     string
	SubAccountID string
	Key          string
	Mode         string
}

// Request is one outgoing server-API call. Method-specific parameters
// (wallettype, onlinebanktransfertype, ...) go into Params.
type Request struct {
	RequestType  string
	Credentials  Credentials
	ClearingType string

	Reference   string
	AmountCents int64
	Currency    string
	Country     string

	// SequenceNumber is required for follow-up requests (refund).
	SequenceNumber string
	// TxID references the original gateway transaction on follow-up requests.
	TxID string

	Params map[string]string
}

// Values renders the request as the form body the gateway expects.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("request", r.RequestType)
	v.Set("mid", r.Credentials.MerchantID)
	v.Set("portalid", r.Credentials.PortalID)
	v.Set("aid", r.Credentials.SubAccountID)
	v.Set("key", r.Credentials.Key)
	v.Set("mode", r.Credentials.Mode)
	v.Set("api_version", "3.9")
	v.Set("encoding", "UTF-8")

	if r.ClearingType != "" {
		v.Set("clearingtype", r.ClearingType)
	}
	if r.Reference != "" {
		v.Set("reference", r.Reference)
	}
	if r.AmountCents != 0 {
		v.Set("amount", strconv.FormatInt(r.AmountCents, 10))
	}
	if r.Currency != "" {
		v.Set("currency", r.Currency)
	}
	if r.Country != "" {
		v.Set("country", r.Country)
	}
	if r.SequenceNumber != "" {
		v.Set("sequencenumber", r.SequenceNumber)
	}
	if r.TxID != "" {
		v.Set("txid", r.TxID)
	}
	for k, val := range r.Params {
		v.Set(k, val)
	}
	return v
}

// AuditString renders the request for the interaction ledger with the portal
// key masked. Keys are sorted so audit entries are stable.
func (r Request) AuditString() string {
	v := r.Values()
	v.Set("key", "****")

	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(v.Get(k))
	}
	return b.String()
}
