package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/ebookstore/internal/domain/payment"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	if opts.SecretKey == "" {
		opts.SecretKey = "sk_test"
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 100
	}
	c := NewClient(opts, zerolog.Nop())
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": true, "message": "ok", "data": data})
}

func TestClient_InitializeTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body initializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(5000), body.Amount)
		assert.Equal(t, "ORD-202401-0001", body.Reference)
		assert.Equal(t, "GHS", body.Currency)

		writeEnvelope(w, map[string]string{
			"authorization_url": "https://checkout.example/abc",
			"access_code":       "abc",
			"reference":         body.Reference,
		})
	}, Options{Currency: "GHS"})

	session, err := c.InitializeTransaction(context.Background(), payment.InitRequest{
		Reference: "ORD-202401-0001", Amount: 5000, Email: "buyer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/abc", session.AuthorizationURL)
	assert.Equal(t, "ORD-202401-0001", session.Reference)
}

func TestClient_RetriesTemporaryFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, map[string]interface{}{"reference": "ORD-1", "status": "success", "amount": 900})
	}, Options{MaxRetries: 3})

	v, err := c.VerifyTransaction(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, v.Status)
	assert.Equal(t, int64(900), v.Amount)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		want    error
		retries int
		calls   int32
	}{
		{"5xx重试耗尽后为可重试错误", http.StatusServiceUnavailable, apperrors.ErrExternalService, 2, 3},
		{"4xx不重试", http.StatusBadRequest, apperrors.ErrProviderRejected, 2, 1},
		{"429视为暂时故障", http.StatusTooManyRequests, apperrors.ErrExternalService, 1, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.Error(w, `{"status":false,"message":"secret internals"}`, tc.status)
			}, Options{MaxRetries: tc.retries})

			_, err := c.Balance(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.calls, atomic.LoadInt32(&calls))

			appErr := apperrors.GetAppError(err)
			assert.NotContains(t, appErr.Message, "secret internals", "服务商返回内容不应透传给客户端")
		})
	}
}

func TestClient_StatusFalseIsRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": false, "message": "invalid recipient"})
	}, Options{MaxRetries: 2})

	_, err := c.Transfer(context.Background(), payout.TransferRequest{Reference: "PAYOUT-1-1", Amount: 100, Destination: "x"})
	assert.ErrorIs(t, err, apperrors.ErrProviderRejected)
}

func TestClient_TransferDoesNotRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, Options{MaxRetries: 5})

	_, err := c.Transfer(context.Background(), payout.TransferRequest{Reference: "PAYOUT-1-1", Amount: 100, Destination: "x"})
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "转账的重试由分账用例负责")
}

func TestClient_TransferAndBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/balance":
			writeEnvelope(w, []map[string]interface{}{
				{"currency": "USD", "balance": 1},
				{"currency": "NGN", "balance": 250000},
			})
		case "/transfer":
			var body transferRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "balance", body.Source)
			assert.Equal(t, "RCP_1", body.Recipient)
			writeEnvelope(w, map[string]string{"transfer_code": "TRF_9", "status": "success"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, Options{WalletID: "main"})

	assert.Equal(t, "main", c.ID())

	balance, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(250000), balance)

	res, err := c.Transfer(context.Background(), payout.TransferRequest{Reference: "PAYOUT-1-1", Amount: 100, Destination: "RCP_1"})
	require.NoError(t, err)
	assert.Equal(t, "TRF_9", res.TransferCode)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, Options{BreakerFailures: 2, BreakerTimeout: time.Minute})

	for i := 0; i < 4; i++ {
		_, err := c.Balance(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrExternalService)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "熔断后不应再请求服务商")
}

func TestClient_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, Options{Timeout: 50 * time.Millisecond})

	_, err := c.VerifyTransaction(context.Background(), "ORD-1")
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
}
