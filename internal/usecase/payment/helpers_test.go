package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/memory"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	creates  int
	executes int
	queries  int
	lastReq  domain.CreatePaymentRequest

	createFn  func(req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error)
	executeFn func(paymentID string) (*domain.ExecutePaymentResult, error)
	queryFn   func(paymentID string) (*domain.QueryPaymentResult, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		executeFn: func(paymentID string) (*domain.ExecutePaymentResult, error) {
			return executed(paymentID, "Completed", domain.OutcomeCompleted), nil
		},
		queryFn: func(paymentID string) (*domain.QueryPaymentResult, error) {
			return queried(paymentID, "Completed", domain.OutcomeCompleted), nil
		},
	}
}

func (g *fakeGateway) Name() string { return "bkash" }

func (g *fakeGateway) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	g.mu.Lock()
	g.creates++
	g.lastReq = req
	n := g.creates
	fn := g.createFn
	g.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	paymentID := fmt.Sprintf("TR00%d", 10+n)
	return &domain.CreatePaymentResult{
		PaymentID:   paymentID,
		RedirectURL: "https://sandbox.payment.bkash.com/?paymentId=" + paymentID,
		StatusCode:  "0000",
		Raw:         json.RawMessage(`{"paymentID":"` + paymentID + `","statusCode":"0000"}`),
	}, nil
}

func (g *fakeGateway) ExecutePayment(ctx context.Context, paymentID string) (*domain.ExecutePaymentResult, error) {
	g.mu.Lock()
	g.executes++
	fn := g.executeFn
	g.mu.Unlock()
	return fn(paymentID)
}

func (g *fakeGateway) QueryPayment(ctx context.Context, paymentID string) (*domain.QueryPaymentResult, error) {
	g.mu.Lock()
	g.queries++
	fn := g.queryFn
	g.mu.Unlock()
	return fn(paymentID)
}

func (g *fakeGateway) counts() (creates, executes, queries int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates, g.executes, g.queries
}

func executed(paymentID, status string, outcome domain.ProviderOutcome) *domain.ExecutePaymentResult {
	return &domain.ExecutePaymentResult{
		PaymentID:         paymentID,
		TrxID:             "AB12CD",
		TransactionStatus: status,
		StatusCode:        "0000",
		Outcome:           outcome,
		Raw:               json.RawMessage(`{"transactionStatus":"` + status + `"}`),
	}
}

func queried(paymentID, status string, outcome domain.ProviderOutcome) *domain.QueryPaymentResult {
	res := &domain.QueryPaymentResult{
		PaymentID:         paymentID,
		TransactionStatus: status,
		StatusCode:        "0000",
		Outcome:           outcome,
		Raw:               json.RawMessage(`{"transactionStatus":"` + status + `"}`),
	}
	if outcome == domain.OutcomeCompleted {
		res.TrxID = "AB12CD"
	}
	return res
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
}

func (p *recordingPublisher) PublishPaymentEvent(ctx context.Context, event domain.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) statuses(transactionID string) []domain.TransactionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.TransactionStatus
	for _, e := range p.events {
		if e.TransactionID == transactionID {
			out = append(out, e.NewStatus)
		}
	}
	return out
}

type recordingAttemptLogger struct {
	mu       sync.Mutex
	attempts []domain.PaymentAttempt
}

func (l *recordingAttemptLogger) LogAttemptFailed(ctx context.Context, attempt domain.PaymentAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, attempt)
	return nil
}

type recordingRefunder struct {
	mu       sync.Mutex
	requests []domain.RefundRequest
	err      error
}

func (r *recordingRefunder) Refund(ctx context.Context, req domain.RefundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.err
}

func (r *recordingRefunder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	gateway  *fakeGateway
	events   *recordingPublisher
	attempts *recordingAttemptLogger
	refunder *recordingRefunder
	metrics  *metrics.PaymentMetrics
	clock    *testClock
	uc       *DefaultPaymentUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewStore(),
		gateway:  newFakeGateway(),
		events:   &recordingPublisher{},
		attempts: &recordingAttemptLogger{},
		refunder: &recordingRefunder{},
		metrics:  metrics.NewPaymentMetrics(prometheus.NewRegistry()),
		clock:    &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	uc, err := NewDefaultPaymentUsecase(
		f.store, f.store, f.gateway, f.refunder, f.events, f.attempts, f.metrics, nil,
		Options{
			CallbackURL: "https://shop.example.com/payments/callback",
			Currency:    "BDT",
			StaleAfter:  5 * time.Minute,
			Concurrency: 2,
		},
	)
	require.NoError(t, err)
	uc.Now = f.clock.Now
	f.uc = uc

	f.addOrder("order-1", "user-1", "450.00")
	return f
}

func (f *fixture) addOrder(id, userID, amount string) {
	f.store.PutOrder(&domain.Order{
		ID:            id,
		UserID:        userID,
		TotalAmount:   decimal.RequireFromString(amount),
		Currency:      "BDT",
		PaymentMethod: domain.MethodMobileWallet,
		PaymentStatus: domain.PaymentPending,
		Status:        domain.StatusPending,
		Version:       1,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	})
}

func (f *fixture) initiate(t *testing.T, orderID, userID string) *paymentdto.InitiatePaymentOutput {
	t.Helper()
	out, err := f.uc.InitiatePayment(f.ctx, &paymentdto.InitiatePaymentInput{OrderID: orderID, UserID: userID})
	require.NoError(t, err)
	return out
}

func (f *fixture) transaction(t *testing.T, id string) *domain.Transaction {
	t.Helper()
	tx, err := f.store.GetTransactionByID(f.ctx, id)
	require.NoError(t, err)
	return tx
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	order, err := f.store.GetOrderByID(f.ctx, id)
	require.NoError(t, err)
	return order
}
