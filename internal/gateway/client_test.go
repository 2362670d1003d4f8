package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonnytest1/commercetools-payone-integration/internal/infrastructure/observability"
)

func TestParseResponse(t *testing.T) {
	body := "status=APPROVED\ntxid=123456789\nuserid=42\n"

	parsed, err := parseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", parsed["status"])
	assert.Equal(t, "123456789", parsed["txid"])
	assert.Equal(t, "42", parsed["userid"])
}

func TestParseResponse_TrimsWhitespace(t *testing.T) {
	body := "  status = REDIRECT \n\n redirecturl = https://example.test/3ds \n"

	parsed, err := parseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "REDIRECT", parsed["status"])
	assert.Equal(t, "https://example.test/3ds", parsed["redirecturl"])
}

func TestParseResponse_MalformedLine(t *testing.T) {
	_, err := parseResponse("status=APPROVED\ngarbage-without-separator\n")
	assert.Error(t, err)
}

func TestParseResponse_MissingStatus(t *testing.T) {
	_, err := parseResponse("txid=123\n")
	assert.Error(t, err)
}

func TestClient_ExecutePost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "preauthorization", r.PostForm.Get("request"))
		assert.Equal(t, "secret-key", r.PostForm.Get("key"))
		w.Write([]byte("status=APPROVED\ntxid=987\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second, nil, zerolog.Nop())
	resp, err := client.ExecutePost(context.Background(), Request{
		RequestType: RequestPreauthorization,
		Credentials: testCredentials(),
	})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", resp[FieldStatus])
	assert.Equal(t, "987", resp[FieldTxID])
}

func TestClient_ExecutePost_HTTPErrorIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second, nil, zerolog.Nop())
	_, err := client.ExecutePost(context.Background(), Request{RequestType: RequestAuthorization, Credentials: testCredentials()})

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, RequestAuthorization, gwErr.Op)
}

func TestClient_ExecutePost_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second, nil, zerolog.Nop())
	_, err := client.ExecutePost(context.Background(), Request{RequestType: RequestRefund, Credentials: testCredentials()})

	var gwErr *Error
	assert.ErrorAs(t, err, &gwErr)
}

func TestClient_BusinessDeclineIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("status=ERROR\nerrorcode=917\nerrormessage=Refund limit exceeded\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second, nil, zerolog.Nop())
	resp, err := client.ExecutePost(context.Background(), Request{RequestType: RequestRefund, Credentials: testCredentials()})
	require.NoError(t, err)
	assert.Equal(t, string(StatusError), resp[FieldStatus])
	assert.Equal(t, "917", resp[FieldErrorCode])
}

func TestClient_CountsCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("status=APPROVED\n"))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)

	client := NewClient(srv.URL, 2*time.Second, metrics, zerolog.Nop())
	_, err := client.ExecutePost(context.Background(), Request{RequestType: RequestPreauthorization, Credentials: testCredentials()})
	require.NoError(t, err)

	count := counterValue(t, reg, "test_gateway_calls_total")
	assert.Equal(t, 1.0, count)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.Metric {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	return 0
}
