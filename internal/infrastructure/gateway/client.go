package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	opGrant   = "grant"
	opRefresh = "refresh"
	opCreate  = "create"
	opExecute = "execute"
	opQuery   = "query"
)

const (
	pathGrant   = "/tokenized/checkout/token/grant"
	pathRefresh = "/tokenized/checkout/token/refresh"
	pathCreate  = "/tokenized/checkout/create"
	pathExecute = "/tokenized/checkout/execute"
	pathQuery   = "/tokenized/checkout/payment/status"
)

type Config struct {
	Name        string
	BaseURL     string
	Username    string
	Password    string
	AppKey      string
	AppSecret   string
	Currency    string
	Timeout     time.Duration
	TokenMargin time.Duration
}

func (c Config) validate() error {
	required := []struct {
		field string
		value string
	}{
		{"gateway.base_url", c.BaseURL},
		{"gateway.username", c.Username},
		{"gateway.password", c.Password},
		{"gateway.app_key", c.AppKey},
		{"gateway.app_secret", c.AppSecret},
		{"gateway.currency", c.Currency},
	}
	for _, r := range required {
		if r.value == "" {
			return &domain.ConfigError{Field: r.field}
		}
	}
	return nil
}

// Client talks to the tokenized checkout API. It never retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *TokenCache
	metrics    *metrics.PaymentMetrics
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithMetrics(m *metrics.PaymentMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "bkash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:    cfg,
		logger: logger.With(zap.String("gateway", cfg.Name)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c.tokens = NewTokenCache(c, cfg.TokenMargin, c.now, c.logger)
	return c, nil
}

func (c *Client) Name() string { return c.cfg.Name }

// Tokens exposes the token cache of the client.
func (c *Client) Tokens() *TokenCache { return c.tokens }

func (c *Client) GrantToken(ctx context.Context) (*Token, error) {
	headers := map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	}
	body := grantRequest{AppKey: c.cfg.AppKey, AppSecret: c.cfg.AppSecret}
	return c.tokenCall(ctx, opGrant, pathGrant, headers, body)
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	headers := map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	}
	body := refreshRequest{AppKey: c.cfg.AppKey, AppSecret: c.cfg.AppSecret, RefreshToken: refreshToken}
	return c.tokenCall(ctx, opRefresh, pathRefresh, headers, body)
}

func (c *Client) tokenCall(ctx context.Context, op, path string, headers map[string]string, body any) (*Token, error) {
	var resp tokenResponse
	raw, err := c.post(ctx, op, path, headers, body, &resp)
	if err != nil {
		return nil, err
	}
	if code, msg := resp.status(); code != "" && code != codeSuccess {
		return nil, &domain.GatewayError{Op: op, Code: code, Message: msg, Kind: classify(code), Raw: raw}
	}
	if resp.IDToken == "" {
		return nil, &domain.TransportError{Op: op, Err: errEmptyToken}
	}
	return &Token{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

func (c *Client) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	body := createRequest{
		Mode:                  checkoutMode,
		PayerReference:        req.PayerReference,
		CallbackURL:           req.CallbackURL,
		Amount:                req.Amount.StringFixed(2),
		Currency:              c.cfg.Currency,
		Intent:                intentSale,
		MerchantInvoiceNumber: req.OrderID,
	}

	var resp createResponse
	raw, err := c.authorizedPost(ctx, opCreate, pathCreate, body, &resp)
	if err != nil {
		return nil, err
	}
	code, msg := resp.status()
	if code != codeSuccess {
		return nil, &domain.GatewayError{Op: opCreate, Code: code, Message: msg, Kind: classify(code), Raw: raw}
	}
	if resp.PaymentID == "" {
		return nil, &domain.TransportError{Op: opCreate, Err: errors.New("response has no paymentID")}
	}

	return &domain.CreatePaymentResult{
		PaymentID:     resp.PaymentID,
		RedirectURL:   resp.BkashURL,
		StatusCode:    code,
		StatusMessage: msg,
		Raw:           raw,
	}, nil
}

func (c *Client) ExecutePayment(ctx context.Context, paymentID string) (*domain.ExecutePaymentResult, error) {
	var resp paymentResponse
	raw, err := c.authorizedPost(ctx, opExecute, pathExecute, paymentIDRequest{PaymentID: paymentID}, &resp)
	if err != nil {
		return nil, err
	}
	code, msg := resp.status()
	if code != codeSuccess {
		return nil, &domain.GatewayError{Op: opExecute, Code: code, Message: msg, Kind: classify(code), Raw: raw}
	}

	return &domain.ExecutePaymentResult{
		PaymentID:         firstNonEmpty(resp.PaymentID, paymentID),
		TrxID:             resp.TrxID,
		TransactionStatus: resp.TransactionStatus,
		StatusCode:        code,
		StatusMessage:     msg,
		Outcome:           outcomeOf(resp.TransactionStatus),
		Raw:               raw,
	}, nil
}

func (c *Client) QueryPayment(ctx context.Context, paymentID string) (*domain.QueryPaymentResult, error) {
	var resp paymentResponse
	raw, err := c.authorizedPost(ctx, opQuery, pathQuery, paymentIDRequest{PaymentID: paymentID}, &resp)
	if err != nil {
		return nil, err
	}
	code, msg := resp.status()
	if code != codeSuccess {
		return nil, &domain.GatewayError{Op: opQuery, Code: code, Message: msg, Kind: classify(code), Raw: raw}
	}

	return &domain.QueryPaymentResult{
		PaymentID:         firstNonEmpty(resp.PaymentID, paymentID),
		TrxID:             resp.TrxID,
		TransactionStatus: resp.TransactionStatus,
		StatusCode:        code,
		StatusMessage:     msg,
		Outcome:           outcomeOf(resp.TransactionStatus),
		Raw:               raw,
	}, nil
}

func (c *Client) authorizedPost(ctx context.Context, op, path string, body, out any) (json.RawMessage, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: get token: %w", op, err)
	}
	headers := map[string]string{
		"Authorization": token,
		"X-App-Key":     c.cfg.AppKey,
	}
	raw, err := c.post(ctx, op, path, headers, body, out)
	var te *domain.TransportError
	if errors.As(err, &te) && te.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	return raw, err
}

// post sends one JSON request. Transport problems, 401, 429, 5xx and undecodable bodies
// come back as *domain.TransportError; a decodable 4xx body with a provider code as *domain.GatewayError.
func (c *Client) post(ctx context.Context, op, path string, headers map[string]string, body, out any) (raw json.RawMessage, err error) {
	start := c.now()
	defer func() {
		c.observe(op, err, c.now().Sub(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil, &domain.GatewayError{
			Op:      op,
			Code:    strconv.Itoa(resp.StatusCode),
			Message: http.StatusText(resp.StatusCode),
			Raw:     rawOrNil(respBody),
		}
	}

	if resp.StatusCode >= 300 {
		var env statusEnvelope
		_ = json.Unmarshal(respBody, &env)
		code, msg := env.status()
		if code == "" || code == codeSuccess {
			code, msg = strconv.Itoa(resp.StatusCode), http.StatusText(resp.StatusCode)
		}
		return nil, &domain.GatewayError{Op: op, Code: code, Message: msg, Kind: classify(code), Raw: rawOrNil(respBody)}
	}

	return json.RawMessage(respBody), nil
}

func (c *Client) observe(op string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if domain.IsTransportError(err) {
			outcome = "transport_error"
		} else if _, ok := domain.AsGatewayError(err); ok {
			outcome = "gateway_error"
		}
		c.logger.Debug("gateway call failed",
			zap.String("op", op),
			zap.Duration("duration", d),
			zap.Error(err),
		)
	}
	if c.metrics != nil {
		c.metrics.ObserveGatewayRequest(op, outcome, d)
	}
}

func rawOrNil(b []byte) json.RawMessage {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
