package gateway

import (
	"encoding/json"
	"fmt"
)

// Response field names in the gateway's key=value reply.
const (
	FieldStatus          = "status"
	FieldRedirectURL     = "redirecturl"
	FieldTxID            = "txid"
	FieldErrorCode       = "errorcode"
	FieldErrorMessage    = "errormessage"
	FieldCustomerMessage = "customermessage"
)

// Status is the gateway's verdict on a submitted request.
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusRedirect Status = "REDIRECT"
	StatusError    Status = "ERROR"
	StatusPending  Status = "PENDING"
)

// UnknownStatusError is raised when the gateway returns a status code outside
// the documented contract. Guessing a transaction state here could cause a
// real-money inconsistency, so the attempt fails loudly instead.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown gateway status %q", e.Status)
}

// ResponseToJSON renders a gateway response map for the audit trail.
func ResponseToJSON(response map[string]string) string {
	b, err := json.Marshal(response)
	if err != nil {
		return fmt.Sprintf("%v", response)
	}
	return string(b)
}

// ErrorToJSON renders a gateway failure for the audit trail, shaped like a
// response so ledger consumers can parse both uniformly.
func ErrorToJSON(err error) string {
	b, jsonErr := json.Marshal(map[string]string{
		FieldStatus:          string(StatusError),
		FieldErrorMessage:    err.Error(),
		FieldCustomerMessage: "Please contact support.",
	})
	if jsonErr != nil {
		return err.Error()
	}
	return string(b)
}
