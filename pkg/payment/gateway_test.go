package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *HTTPGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPGateway(Config{BaseURL: server.URL, APIKey: "key", Timeout: timeout}, server.Client())
}

func TestHTTPGatewayTransferSucceeds(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "task:s1:t1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "20.1", body["amount"])
		assert.Equal(t, "0xstudent", body["destination"])

		_ = json.NewEncoder(w).Encode(TransferResult{Status: StatusSucceeded, TransactionRef: "0xabc"})
	}, time.Second)

	ref, err := gateway.Transfer(context.Background(), TransferRequest{
		Amount:         decimal.RequireFromString("20.1"),
		Source:         "0xtreasury",
		Destination:    "0xstudent",
		IdempotencyKey: "task:s1:t1",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", ref)
}

func TestHTTPGatewayTransferClassifiesFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "client error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "insufficient funds", http.StatusUnprocessableEntity)
			},
			want: ErrTransferFailed,
		},
		{
			name: "explicit failure",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(TransferResult{Status: StatusFailed, Reason: "rejected"})
			},
			want: ErrTransferFailed,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: ErrStatusUnknown,
		},
		{
			name: "still pending",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(TransferResult{Status: StatusPending})
			},
			want: ErrStatusUnknown,
		},
		{
			name: "garbled body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{"))
			},
			want: ErrStatusUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := newTestGateway(t, tc.handler, time.Second)
			_, err := gateway.Transfer(context.Background(), TransferRequest{Amount: decimal.NewFromInt(1), IdempotencyKey: "k"})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTPGatewayTransferTimeoutIsUnknown(t *testing.T) {
	release := make(chan struct{})
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := gateway.Transfer(context.Background(), TransferRequest{Amount: decimal.NewFromInt(1), IdempotencyKey: "k"})
	require.ErrorIs(t, err, ErrStatusUnknown)
}

func TestHTTPGatewayTransferRequiresKey(t *testing.T) {
	gateway := NewHTTPGateway(Config{BaseURL: "http://unused"}, nil)
	_, err := gateway.Transfer(context.Background(), TransferRequest{Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrTransferFailed)
}

func TestHTTPGatewayStatus(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transfers/reward:s1:r1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TransferResult{Status: StatusSucceeded, TransactionRef: "0xdef"})
	}, time.Second)

	result, err := gateway.Status(context.Background(), "reward:s1:r1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, "0xdef", result.TransactionRef)
}
