package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"payment-relay/internal/client"
	"payment-relay/internal/codec"
	"payment-relay/internal/model"
	"payment-relay/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidRecord(t *testing.T, purchase model.PurchaseContext) *model.PaymentRecord {
	t.Helper()
	udf, err := codec.EncodePurchaseContext(purchase)
	require.NoError(t, err)
	return &model.PaymentRecord{
		InvoiceID:        "4455",
		PaymentID:        "p-2",
		InvoiceValue:     decimal.RequireFromString("25"),
		Currency:         "KWD",
		Status:           model.PaymentStatusPaid,
		GatewayStatus:    "Paid",
		UserDefinedField: udf,
		TransactionID:    "t-ok",
	}
}

func newTestReconciler(backend *mockBackend, ledger repository.ReconciliationLedger) Reconciler {
	return NewReconciler(backend, ledger, zerolog.Nop())
}

func TestReconcile_PendingHasNoSideEffects(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(backend, repository.NewMemoryLedger(time.Minute, time.Hour))

	rec := paidRecord(t, model.PurchaseContext{VariantID: "999", DraftOrderID: "77"})
	rec.Status = model.PaymentStatusPending
	res := r.Reconcile(context.Background(), rec)

	assert.False(t, res.Success)
	assert.Equal(t, model.ReconciliationPending, res.Status)
	assert.Nil(t, res.Order)

	orders, deletes, lookups := backend.calls()
	assert.Empty(t, orders)
	assert.Empty(t, deletes)
	assert.Empty(t, lookups)
}

func TestReconcile_FailedStatus(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(backend, nil)

	rec := paidRecord(t, model.PurchaseContext{VariantID: "999"})
	rec.Status = model.PaymentStatusOther
	rec.GatewayStatus = "Canceled"
	res := r.Reconcile(context.Background(), rec)

	assert.False(t, res.Success)
	assert.Equal(t, model.ReconciliationFailed, res.Status)
	assert.Contains(t, res.Message, "Canceled")

	orders, deletes, _ := backend.calls()
	assert.Empty(t, orders)
	assert.Empty(t, deletes)
}

func TestReconcile_PaidCreatesOrderAndDeletesDraft(t *testing.T) {
	backend := &mockBackend{
		FindCustomerByEmailFunc: func(ctx context.Context, email string) (string, error) {
			return "7788", nil
		},
	}
	r := newTestReconciler(backend, repository.NewMemoryLedger(time.Minute, time.Hour))

	res := r.Reconcile(context.Background(), paidRecord(t, model.PurchaseContext{
		VariantID:     "999",
		Quantity:      2,
		CustomerEmail: "buyer@example.com",
		DraftOrderID:  "1122",
	}))

	assert.True(t, res.Success)
	assert.Equal(t, model.ReconciliationPaid, res.Status)
	require.NotNil(t, res.Order)
	assert.Equal(t, "5566", res.Order.ID)
	assert.Equal(t, "4455", res.InvoiceID)
	assert.Equal(t, "t-ok", res.TransactionID)
	assert.Equal(t, "KWD", res.Currency)
	assert.True(t, decimal.RequireFromString("25").Equal(res.Amount))

	orders, deletes, _ := backend.calls()
	require.Len(t, orders, 1)
	assert.Equal(t, &client.CreateOrderInput{
		VariantID:     "999",
		Quantity:      2,
		CustomerEmail: "buyer@example.com",
		CustomerID:    "7788",
		InvoiceID:     "4455",
		TransactionID: "t-ok",
		Amount:        decimal.RequireFromString("25"),
		Currency:      "KWD",
	}, orders[0])
	assert.Equal(t, []string{"1122"}, deletes)
}

func TestReconcile_PaidWithoutVariantMakesNoOrder(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(backend, nil)

	res := r.Reconcile(context.Background(), paidRecord(t, model.PurchaseContext{CustomerEmail: "a@b.c"}))

	assert.True(t, res.Success)
	assert.Equal(t, model.ReconciliationPaid, res.Status)
	assert.Nil(t, res.Order)

	orders, _, lookups := backend.calls()
	assert.Empty(t, orders)
	assert.Empty(t, lookups)
}

func TestReconcile_PaidWithGarbageContext(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(backend, nil)

	rec := paidRecord(t, model.PurchaseContext{})
	rec.UserDefinedField = "{{{ not json"
	res := r.Reconcile(context.Background(), rec)

	assert.True(t, res.Success)
	assert.Nil(t, res.Order)
	orders, deletes, _ := backend.calls()
	assert.Empty(t, orders)
	assert.Empty(t, deletes)
}

func TestReconcile_OrderFailureStillReportsPaid(t *testing.T) {
	backend := &mockBackend{
		CreateOrderFunc: func(ctx context.Context, in *client.CreateOrderInput) (*model.OrderResult, error) {
			return nil, errMockBackend
		},
		DeleteDraftOrderFunc: func(ctx context.Context, id string) error {
			return errMockBackend
		},
	}
	ledger := repository.NewMemoryLedger(time.Minute, time.Hour)
	r := newTestReconciler(backend, ledger)

	res := r.Reconcile(context.Background(), paidRecord(t, model.PurchaseContext{VariantID: "999", DraftOrderID: "1122"}))

	assert.True(t, res.Success)
	assert.Equal(t, model.ReconciliationPaid, res.Status)
	assert.Nil(t, res.Order)

	// a failed order releases the claim so a later poll can try again
	_, acquired, err := ledger.Claim(context.Background(), "4455")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestReconcile_CustomerLookupFailureDegrades(t *testing.T) {
	backend := &mockBackend{
		FindCustomerByEmailFunc: func(ctx context.Context, email string) (string, error) {
			return "", errMockBackend
		},
	}
	r := newTestReconciler(backend, nil)

	res := r.Reconcile(context.Background(), paidRecord(t, model.PurchaseContext{VariantID: "999", CustomerEmail: "a@b.c"}))

	require.NotNil(t, res.Order)
	orders, _, _ := backend.calls()
	require.Len(t, orders, 1)
	assert.Empty(t, orders[0].CustomerID)
	assert.Equal(t, 1, orders[0].Quantity)
}

func TestReconcile_BackendUnconfigured(t *testing.T) {
	backend := &mockBackend{ConfiguredFunc: func() bool { return false }}
	r := newTestReconciler(backend, nil)

	res := r.Reconcile(context.Background(), paidRecord(t, model.PurchaseContext{VariantID: "999", DraftOrderID: "1"}))

	assert.True(t, res.Success)
	assert.Nil(t, res.Order)
	orders, deletes, _ := backend.calls()
	assert.Empty(t, orders)
	assert.Empty(t, deletes)
}

func TestReconcile_DraftDeletedWithoutVariant(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(backend, nil)

	r.Reconcile(context.Background(), paidRecord(t, model.PurchaseContext{DraftOrderID: "1122"}))

	orders, deletes, _ := backend.calls()
	assert.Empty(t, orders)
	assert.Equal(t, []string{"1122"}, deletes)
}

func TestReconcile_SecondTriggerReusesOrder(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(backend, repository.NewMemoryLedger(time.Minute, time.Hour))
	rec := paidRecord(t, model.PurchaseContext{VariantID: "999", DraftOrderID: "1122"})

	first := r.Reconcile(context.Background(), rec)
	second := r.Reconcile(context.Background(), rec)

	require.NotNil(t, first.Order)
	assert.Equal(t, first.Order, second.Order)
	assert.True(t, second.Success)

	orders, deletes, _ := backend.calls()
	assert.Len(t, orders, 1)
	assert.Len(t, deletes, 1)
}

func TestReconcile_ConcurrentTriggersCreateOneOrder(t *testing.T) {
	release := make(chan struct{})
	backend := &mockBackend{
		CreateOrderFunc: func(ctx context.Context, in *client.CreateOrderInput) (*model.OrderResult, error) {
			<-release
			return &model.OrderResult{ID: "5566", OrderNumber: 1042}, nil
		},
	}
	r := newTestReconciler(backend, repository.NewMemoryLedger(time.Minute, time.Hour))
	rec := paidRecord(t, model.PurchaseContext{VariantID: "999"})

	var wg sync.WaitGroup
	results := make([]*model.ReconciliationResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Reconcile(context.Background(), rec)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	orders, _, _ := backend.calls()
	assert.Len(t, orders, 1)
	for _, res := range results {
		assert.True(t, res.Success)
		assert.Equal(t, model.ReconciliationPaid, res.Status)
	}
}

func TestReconcile_WithoutLedgerDuplicatesAreNotCollapsed(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(backend, repository.NewNoopLedger())
	rec := paidRecord(t, model.PurchaseContext{VariantID: "999"})

	r.Reconcile(context.Background(), rec)
	r.Reconcile(context.Background(), rec)

	orders, _, _ := backend.calls()
	assert.Len(t, orders, 2)
}
