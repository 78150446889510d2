package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider emulates the tokenized checkout endpoints.
type fakeProvider struct {
	t *testing.T

	grants atomic.Int32

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	bodies   map[string]map[string]any
	headers  map[string]http.Header
}

func newFakeProvider(t *testing.T) (*fakeProvider, *httptest.Server) {
	p := &fakeProvider{
		t:        t,
		handlers: map[string]http.HandlerFunc{},
		bodies:   map[string]map[string]any{},
		headers:  map[string]http.Header{},
	}
	srv := httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakeProvider) on(path string, h http.HandlerFunc) {
	p.mu.Lock()
	p.handlers[path] = h
	p.mu.Unlock()
}

func (p *fakeProvider) lastBody(path string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodies[path]
}

func (p *fakeProvider) lastHeaders(path string) http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headers[path]
}

func (p *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	p.mu.Lock()
	p.bodies[r.URL.Path] = body
	p.headers[r.URL.Path] = r.Header.Clone()
	h := p.handlers[r.URL.Path]
	p.mu.Unlock()

	if r.URL.Path == pathGrant && h == nil {
		n := p.grants.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"statusCode":    "0000",
			"statusMessage": "Successful",
			"id_token":      "id-token-" + string(rune('0'+n)),
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-token",
		})
		return
	}
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(baseURL string) Config {
	return Config{
		Name:      "bkash",
		BaseURL:   baseURL,
		Username:  "sandboxTokenizedUser02",
		Password:  "sandboxTokenizedUser02@12345",
		AppKey:    "app-key",
		AppSecret: "app-secret",
		Currency:  "BDT",
		Timeout:   2 * time.Second,
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient(testConfig(baseURL), nil, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient_MissingCredentials(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.AppSecret = ""

	_, err := NewClient(cfg, nil)

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "gateway.app_secret", cfgErr.Field)
}

func TestClient_CreatePayment(t *testing.T) {
	provider, srv := newFakeProvider(t)
	provider.on(pathCreate, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"statusCode":        "0000",
			"statusMessage":     "Successful",
			"paymentID":         "TR0011ABC",
			"bkashURL":          "https://sandbox.payment.bkash.com/?paymentId=TR0011ABC",
			"transactionStatus": "Initiated",
			"amount":            "450.00",
		})
	})
	client := newTestClient(t, srv.URL, WithMetrics(metrics.NewPaymentMetrics(prometheus.NewRegistry())))

	res, err := client.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		Amount:         decimal.RequireFromString("450"),
		OrderID:        "order-1",
		PayerReference: "payer-1",
		CallbackURL:    "https://shop.example/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "TR0011ABC", res.PaymentID)
	assert.Equal(t, "https://sandbox.payment.bkash.com/?paymentId=TR0011ABC", res.RedirectURL)
	assert.Equal(t, "0000", res.StatusCode)
	assert.True(t, json.Valid(res.Raw))

	body := provider.lastBody(pathCreate)
	assert.Equal(t, "0011", body["mode"])
	assert.Equal(t, "sale", body["intent"])
	assert.Equal(t, "BDT", body["currency"])
	assert.Equal(t, "450.00", body["amount"])
	assert.Equal(t, "order-1", body["merchantInvoiceNumber"])
	assert.Equal(t, "payer-1", body["payerReference"])
	assert.Equal(t, "https://shop.example/callback", body["callbackURL"])

	headers := provider.lastHeaders(pathCreate)
	assert.Equal(t, "id-token-1", headers.Get("Authorization"))
	assert.Equal(t, "app-key", headers.Get("X-App-Key"))

	grant := provider.lastHeaders(pathGrant)
	assert.Equal(t, "sandboxTokenizedUser02", grant.Get("username"))
	assert.Equal(t, "sandboxTokenizedUser02@12345", grant.Get("password"))
	grantBody := provider.lastBody(pathGrant)
	assert.Equal(t, "app-key", grantBody["app_key"])
	assert.Equal(t, "app-secret", grantBody["app_secret"])
}

func TestClient_ReusesToken(t *testing.T) {
	provider, srv := newFakeProvider(t)
	provider.on(pathQuery, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"statusCode":        "0000",
			"paymentID":         "TR1",
			"transactionStatus": "Initiated",
		})
	})
	client := newTestClient(t, srv.URL)

	for i := 0; i < 3; i++ {
		_, err := client.QueryPayment(context.Background(), "TR1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), provider.grants.Load())
}

func TestClient_CreatePayment_BusinessFailure(t *testing.T) {
	provider, srv := newFakeProvider(t)
	provider.on(pathCreate, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"statusCode":    "2001",
			"statusMessage": "Insufficient Balance",
		})
	})
	client := newTestClient(t, srv.URL)

	res, err := client.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		Amount:  decimal.RequireFromString("450.00"),
		OrderID: "order-1",
	})
	require.Nil(t, res)

	gwErr, ok := domain.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "2001", gwErr.Code)
	assert.Equal(t, "Insufficient Balance", gwErr.Message)
	assert.Equal(t, domain.GatewayDeclined, gwErr.Kind)
	assert.False(t, domain.IsTransportError(err))
}

func TestClient_ExecutePayment(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        map[string]any
		wantTrx     string
		wantOutcome domain.ProviderOutcome
		wantCode    string
		wantKind    domain.GatewayErrorKind
		transport   bool
	}{
		{
			name:   "completed",
			status: http.StatusOK,
			body: map[string]any{
				"statusCode":        "0000",
				"statusMessage":     "Successful",
				"paymentID":         "TR1",
				"trxID":             "BFD90JRLST",
				"transactionStatus": "Completed",
			},
			wantTrx:     "BFD90JRLST",
			wantOutcome: domain.OutcomeCompleted,
		},
		{
			name:     "insufficient balance",
			status:   http.StatusOK,
			body:     map[string]any{"statusCode": "2001", "statusMessage": "Insufficient Balance"},
			wantCode: "2001",
			wantKind: domain.GatewayDeclined,
		},
		{
			name:     "already completed",
			status:   http.StatusOK,
			body:     map[string]any{"statusCode": "2062", "statusMessage": "The payment has already been completed"},
			wantCode: "2062",
			wantKind: domain.GatewayAlreadyExecuted,
		},
		{
			name:     "execute called before",
			status:   http.StatusOK,
			body:     map[string]any{"errorCode": "2117", "errorMessage": "Payment execution already been called before"},
			wantCode: "2117",
			wantKind: domain.GatewayAlreadyExecuted,
		},
		{
			name:     "invalid payment state",
			status:   http.StatusBadRequest,
			body:     map[string]any{"statusCode": "2056", "statusMessage": "Invalid Payment State"},
			wantCode: "2056",
			wantKind: domain.GatewayExpired,
		},
		{
			name:      "server error",
			status:    http.StatusBadGateway,
			body:      map[string]any{"message": "upstream"},
			transport: true,
		},
		{
			name:      "throttled",
			status:    http.StatusTooManyRequests,
			body:      map[string]any{},
			transport: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, srv := newFakeProvider(t)
			provider.on(pathExecute, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			client := newTestClient(t, srv.URL)

			res, err := client.ExecutePayment(context.Background(), "TR1")
			assert.Equal(t, "TR1", provider.lastBody(pathExecute)["paymentID"])

			switch {
			case tt.transport:
				require.Error(t, err)
				assert.True(t, domain.IsTransportError(err))
			case tt.wantCode != "":
				gwErr, ok := domain.AsGatewayError(err)
				require.True(t, ok, "expected gateway error, got %v", err)
				assert.Equal(t, tt.wantCode, gwErr.Code)
				assert.Equal(t, tt.wantKind, gwErr.Kind)
				assert.NotEmpty(t, gwErr.Raw)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantTrx, res.TrxID)
				assert.Equal(t, tt.wantOutcome, res.Outcome)
			}
		})
	}
}

func TestClient_QueryPayment_Outcomes(t *testing.T) {
	cases := map[string]domain.ProviderOutcome{
		"Completed":          domain.OutcomeCompleted,
		"Initiated":          domain.OutcomeInitiated,
		"Pending Authorized": domain.OutcomePending,
		"Expired":            domain.OutcomeFailed,
		"Declined":           domain.OutcomeFailed,
		"Cancelled":          domain.OutcomeFailed,
		"Failed":             domain.OutcomeFailed,
	}

	for status, want := range cases {
		t.Run(status, func(t *testing.T) {
			provider, srv := newFakeProvider(t)
			provider.on(pathQuery, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{
					"statusCode":        "0000",
					"paymentID":         "TR1",
					"transactionStatus": status,
				})
			})
			client := newTestClient(t, srv.URL)

			res, err := client.QueryPayment(context.Background(), "TR1")
			require.NoError(t, err)
			assert.Equal(t, want, res.Outcome)
			assert.Equal(t, status, res.TransactionStatus)
		})
	}
}

func TestClient_UnauthorizedInvalidatesToken(t *testing.T) {
	provider, srv := newFakeProvider(t)
	var calls atomic.Int32
	provider.on(pathQuery, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"statusCode": "0000", "transactionStatus": "Initiated"})
	})
	client := newTestClient(t, srv.URL)

	_, err := client.QueryPayment(context.Background(), "TR1")
	require.Error(t, err)
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)

	_, err = client.QueryPayment(context.Background(), "TR1")
	require.NoError(t, err)
	// the first token was dropped, the refresh endpoint is unknown, so a second grant ran
	assert.Equal(t, int32(2), provider.grants.Load())
	assert.Equal(t, "id-token-2", provider.lastHeaders(pathQuery).Get("Authorization"))
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	provider, srv := newFakeProvider(t)
	provider.on(pathExecute, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		writeJSON(w, http.StatusOK, map[string]any{"statusCode": "0000", "transactionStatus": "Completed"})
	})
	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = client.ExecutePayment(context.Background(), "TR1")
	require.Error(t, err)
	assert.True(t, domain.IsTransportError(err))
}

func TestClient_UndecodableBodyIsTransportError(t *testing.T) {
	provider, srv := newFakeProvider(t)
	provider.on(pathCreate, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	client := newTestClient(t, srv.URL)

	_, err := client.CreatePayment(context.Background(), domain.CreatePaymentRequest{Amount: decimal.NewFromInt(1), OrderID: "o"})
	require.Error(t, err)
	assert.True(t, domain.IsTransportError(err))
}

func TestClient_GrantFailure(t *testing.T) {
	provider, srv := newFakeProvider(t)
	provider.on(pathGrant, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"statusCode": "2079", "statusMessage": "Invalid username and password"})
	})
	client := newTestClient(t, srv.URL)

	_, err := client.QueryPayment(context.Background(), "TR1")
	gwErr, ok := domain.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "2079", gwErr.Code)
}
