package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/order"
	"github.com/cassiomorais/expresscheckout/internal/domain/outbox"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is a mock implementation of payment.Repository.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
	events   map[uuid.UUID][]*payment.PaymentEvent
	byToken  map[string]*payment.Payment
	updates  int

	CreateFunc     func(ctx context.Context, p *payment.Payment) error
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	GetByTokenFunc func(ctx context.Context, token string) (*payment.Payment, error)
	UpdateFunc     func(ctx context.Context, p *payment.Payment) error
	AddEventFunc   func(ctx context.Context, event *payment.PaymentEvent) error
	GetEventsFunc  func(ctx context.Context, paymentID uuid.UUID) ([]*payment.PaymentEvent, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*payment.Payment),
		events:   make(map[uuid.UUID][]*payment.PaymentEvent),
		byToken:  make(map[string]*payment.Payment),
	}
}

// AddPayment pre-populates the mock with a payment.
func (m *MockPaymentRepository) AddPayment(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	if p.Source != nil {
		m.byToken[p.Source.Token] = p
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.AddPayment(p)
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return p, nil
}

func (m *MockPaymentRepository) GetByToken(ctx context.Context, token string) (*payment.Payment, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byToken[token]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return p, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		return domainErrors.ErrPaymentNotFound
	}
	m.payments[p.ID] = p
	m.updates++
	return nil
}

func (m *MockPaymentRepository) AddEvent(ctx context.Context, event *payment.PaymentEvent) error {
	if m.AddEventFunc != nil {
		return m.AddEventFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.PaymentID] = append(m.events[event.PaymentID], event)
	return nil
}

func (m *MockPaymentRepository) GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*payment.PaymentEvent, error) {
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[paymentID], nil
}

// EventTypes lists the recorded event types for a payment in order.
func (m *MockPaymentRepository) EventTypes(paymentID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events[paymentID]))
	for _, e := range m.events[paymentID] {
		types = append(types, e.EventType)
	}
	return types
}

func (m *MockPaymentRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

// --- Order Repository Mock ---

// MockOrderRepository is a mock implementation of order.Repository.
type MockOrderRepository struct {
	mu      sync.Mutex
	byGuest map[string]*order.Order

	FindCurrentFunc func(ctx context.Context, guestToken string) (*order.Order, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{byGuest: make(map[string]*order.Order)}
}

func (m *MockOrderRepository) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byGuest[o.GuestToken] = o
}

func (m *MockOrderRepository) FindCurrent(ctx context.Context, guestToken string) (*order.Order, error) {
	if m.FindCurrentFunc != nil {
		return m.FindCurrentFunc(ctx, guestToken)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byGuest[guestToken]
	if !ok || guestToken == "" {
		return nil, domainErrors.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byGuest {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, domainErrors.ErrOrderNotFound
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	Entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	return nil
}

// EventTypes lists the inserted event types in order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		types = append(types, e.EventType)
	}
	return types
}

// --- Gateway Mock ---

// MockGateway is a scripted providers.Provider that records every request.
// Unset funcs answer with a plain success.
type MockGateway struct {
	mu sync.Mutex

	SetExpressCheckoutRequests []providers.SetExpressCheckoutRequest
	DetailsRequests            []string
	PurchaseRequests           []providers.DoExpressCheckoutPaymentRequest
	RefundRequests             []providers.RefundRequest

	SetExpressCheckoutFunc        func(ctx context.Context, req providers.SetExpressCheckoutRequest) (*providers.SetExpressCheckoutResponse, error)
	GetExpressCheckoutDetailsFunc func(ctx context.Context, token string) (*providers.CheckoutDetails, error)
	DoExpressCheckoutPaymentFunc  func(ctx context.Context, req providers.DoExpressCheckoutPaymentRequest) (*providers.PaymentResponse, error)
	RefundTransactionFunc         func(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error)
}

func (m *MockGateway) Name() string { return "mock_gateway" }

func (m *MockGateway) CheckoutURL(token string) string {
	return "https://gateway.test/checkout?token=" + token
}

func (m *MockGateway) SetExpressCheckout(ctx context.Context, req providers.SetExpressCheckoutRequest) (*providers.SetExpressCheckoutResponse, error) {
	m.mu.Lock()
	m.SetExpressCheckoutRequests = append(m.SetExpressCheckoutRequests, req)
	m.mu.Unlock()
	if m.SetExpressCheckoutFunc != nil {
		return m.SetExpressCheckoutFunc(ctx, req)
	}
	return &providers.SetExpressCheckoutResponse{
		Response: providers.Response{Ack: providers.AckSuccess},
		Token:    "EC-" + uuid.NewString()[:8],
	}, nil
}

func (m *MockGateway) GetExpressCheckoutDetails(ctx context.Context, token string) (*providers.CheckoutDetails, error) {
	m.mu.Lock()
	m.DetailsRequests = append(m.DetailsRequests, token)
	m.mu.Unlock()
	if m.GetExpressCheckoutDetailsFunc != nil {
		return m.GetExpressCheckoutDetailsFunc(ctx, token)
	}
	return &providers.CheckoutDetails{
		Response: providers.Response{Ack: providers.AckSuccess},
		Token:    token,
		PayerID:  "PAYER-1",
	}, nil
}

func (m *MockGateway) DoExpressCheckoutPayment(ctx context.Context, req providers.DoExpressCheckoutPaymentRequest) (*providers.PaymentResponse, error) {
	m.mu.Lock()
	m.PurchaseRequests = append(m.PurchaseRequests, req)
	m.mu.Unlock()
	if m.DoExpressCheckoutPaymentFunc != nil {
		return m.DoExpressCheckoutPaymentFunc(ctx, req)
	}
	return SuccessfulPurchase("12345678"), nil
}

func (m *MockGateway) RefundTransaction(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error) {
	m.mu.Lock()
	m.RefundRequests = append(m.RefundRequests, req)
	m.mu.Unlock()
	if m.RefundTransactionFunc != nil {
		return m.RefundTransactionFunc(ctx, req)
	}
	return &providers.RefundResponse{
		Response:            providers.Response{Ack: providers.AckSuccess},
		RefundTransactionID: "R-" + uuid.NewString()[:8],
	}, nil
}

func (m *MockGateway) Calls() (set, details, purchase, refund int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SetExpressCheckoutRequests), len(m.DetailsRequests), len(m.PurchaseRequests), len(m.RefundRequests)
}

// --- Locker Mock ---

// MockLocker is an in-memory payment.Locker.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool

	Acquired []string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (payment.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, domainErrors.ErrLockAcquisitionFailed
	}
	m.held[key] = true
	m.Acquired = append(m.Acquired, key)
	return &mockLock{locker: m, key: key}, nil
}

// Held reports whether key is currently locked.
func (m *MockLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

type mockLock struct {
	locker *MockLocker
	key    string
}

func (l *mockLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if !l.locker.held[l.key] {
		return domainErrors.ErrLockNotHeld
	}
	delete(l.locker.held, l.key)
	return nil
}
