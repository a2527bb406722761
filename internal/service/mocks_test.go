package service

import (
	"context"
	"errors"
	"sync"

	"payment-relay/internal/client"
	"payment-relay/internal/model"
)

var errMockBackend = errors.New("backend exploded")

type mockBackend struct {
	ConfiguredFunc          func() bool
	CreateDraftOrderFunc    func(ctx context.Context, in *client.DraftOrderInput) (*model.DraftOrderRef, error)
	DeleteDraftOrderFunc    func(ctx context.Context, id string) error
	FindCustomerByEmailFunc func(ctx context.Context, email string) (string, error)
	CreateOrderFunc         func(ctx context.Context, in *client.CreateOrderInput) (*model.OrderResult, error)

	mu           sync.Mutex
	createOrders []*client.CreateOrderInput
	deletes      []string
	lookups      []string
}

func (m *mockBackend) Configured() bool {
	if m.ConfiguredFunc != nil {
		return m.ConfiguredFunc()
	}
	return true
}

func (m *mockBackend) CreateDraftOrder(ctx context.Context, in *client.DraftOrderInput) (*model.DraftOrderRef, error) {
	if m.CreateDraftOrderFunc != nil {
		return m.CreateDraftOrderFunc(ctx, in)
	}
	return &model.DraftOrderRef{ID: "1", Name: "#D1"}, nil
}

func (m *mockBackend) DeleteDraftOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, id)
	m.mu.Unlock()
	if m.DeleteDraftOrderFunc != nil {
		return m.DeleteDraftOrderFunc(ctx, id)
	}
	return nil
}

func (m *mockBackend) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	m.lookups = append(m.lookups, email)
	m.mu.Unlock()
	if m.FindCustomerByEmailFunc != nil {
		return m.FindCustomerByEmailFunc(ctx, email)
	}
	return "", nil
}

func (m *mockBackend) CreateOrder(ctx context.Context, in *client.CreateOrderInput) (*model.OrderResult, error) {
	m.mu.Lock()
	m.createOrders = append(m.createOrders, in)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, in)
	}
	return &model.OrderResult{ID: "5566", OrderNumber: 1042, Name: "#1042", StatusURL: "https://shop/status"}, nil
}

func (m *mockBackend) calls() (orders []*client.CreateOrderInput, deletes, lookups []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(orders, m.createOrders...), append(deletes, m.deletes...), append(lookups, m.lookups...)
}

type mockGateway struct {
	CreatePaymentFunc    func(ctx context.Context, in *client.CreatePaymentInput) (*client.CreatePaymentResult, error)
	GetPaymentStatusFunc func(ctx context.Context, key string, keyType client.PaymentKeyType) (*model.PaymentRecord, error)

	mu       sync.Mutex
	payments []*client.CreatePaymentInput
	lookups  []string
}

func (m *mockGateway) CreatePayment(ctx context.Context, in *client.CreatePaymentInput) (*client.CreatePaymentResult, error) {
	m.mu.Lock()
	m.payments = append(m.payments, in)
	m.mu.Unlock()
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, in)
	}
	return &client.CreatePaymentResult{PaymentURL: "https://pay/1", PaymentID: "1", InvoiceID: "1"}, nil
}

func (m *mockGateway) GetPaymentStatus(ctx context.Context, key string, keyType client.PaymentKeyType) (*model.PaymentRecord, error) {
	m.mu.Lock()
	m.lookups = append(m.lookups, string(keyType)+":"+key)
	m.mu.Unlock()
	if m.GetPaymentStatusFunc != nil {
		return m.GetPaymentStatusFunc(ctx, key, keyType)
	}
	return nil, errors.New("no status configured")
}

func (m *mockGateway) calls() (payments []*client.CreatePaymentInput, lookups []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(payments, m.payments...), append(lookups, m.lookups...)
}
