package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"payment-relay/internal/apperr"
	"payment-relay/internal/client"
	"payment-relay/internal/config"
	"payment-relay/internal/dto"
	"payment-relay/internal/model"
	"payment-relay/internal/service"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type mockCheckoutService struct {
	CreateDraftOrderFunc func(ctx context.Context, req *dto.CreateDraftOrderRequest) (*model.DraftOrderRef, error)
	CreatePaymentFunc    func(ctx context.Context, req *dto.CreatePaymentRequest) (*client.CreatePaymentResult, error)
	VerifyPaymentFunc    func(ctx context.Context, paymentID string) (*model.ReconciliationResult, error)
	HandleWebhookFunc    func(body []byte) (bool, error)

	mu       sync.Mutex
	webhooks []string
}

func (m *mockCheckoutService) CreateDraftOrder(ctx context.Context, req *dto.CreateDraftOrderRequest) (*model.DraftOrderRef, error) {
	if m.CreateDraftOrderFunc != nil {
		return m.CreateDraftOrderFunc(ctx, req)
	}
	return &model.DraftOrderRef{ID: "77", Name: "#D77"}, nil
}

func (m *mockCheckoutService) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*client.CreatePaymentResult, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	return &client.CreatePaymentResult{PaymentURL: "https://pay/1", PaymentID: "p-1", InvoiceID: "1"}, nil
}

func (m *mockCheckoutService) VerifyPayment(ctx context.Context, paymentID string) (*model.ReconciliationResult, error) {
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, paymentID)
	}
	return &model.ReconciliationResult{Status: model.ReconciliationPending, PaymentID: paymentID}, nil
}

func (m *mockCheckoutService) HandleWebhook(body []byte) (bool, error) {
	m.mu.Lock()
	m.webhooks = append(m.webhooks, string(body))
	m.mu.Unlock()
	if m.HandleWebhookFunc != nil {
		return m.HandleWebhookFunc(body)
	}
	return true, nil
}

func (m *mockCheckoutService) receivedWebhooks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.webhooks...)
}

func newTestServer(svc service.CheckoutService) *Server {
	cfg := &config.Config{}
	cfg.Environment.Name = "test"
	cfg.MyFatoorah.APIToken = "tok"
	cfg.MyFatoorah.BaseApiURL = "https://apitest.myfatoorah.com"
	return NewServer(cfg, svc, zerolog.Nop())
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestDescribe(t *testing.T) {
	s := newTestServer(&mockCheckoutService{})

	rec := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "payment-relay", body["name"])
	assert.Equal(t, "test", body["environment"])
	assert.Equal(t, map[string]any{"configured": true}, body["gateway"])
	assert.Equal(t, map[string]any{"configured": false}, body["backend"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(&mockCheckoutService{})

	rec := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreatePayment_NonPositivePriceIs400(t *testing.T) {
	// real service: validation happens before any client is touched
	s := newTestServer(service.NewCheckoutService(nil, nil, nil, nil, zerolog.Nop()))

	rec := do(t, s, http.MethodPost, "/api/create-payment", `{"variantId":"999","price":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "price")
}

func TestCreatePayment_Success(t *testing.T) {
	var got *dto.CreatePaymentRequest
	s := newTestServer(&mockCheckoutService{
		CreatePaymentFunc: func(ctx context.Context, req *dto.CreatePaymentRequest) (*client.CreatePaymentResult, error) {
			got = req
			return &client.CreatePaymentResult{PaymentURL: "https://pay/inv/4455", PaymentID: "p-2", InvoiceID: "4455"}, nil
		},
	})

	rec := do(t, s, http.MethodPost, "/api/create-payment",
		`{"productId":"gid://shopify/Product/123","variantId":999,"price":"25","quantity":1,"customerEmail":"a@b.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, got)
	assert.Equal(t, model.ShopifyID("123"), got.ProductID)
	assert.Equal(t, model.ShopifyID("999"), got.VariantID)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(25)))

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://pay/inv/4455", body["paymentUrl"])
	assert.Equal(t, "4455", body["invoiceId"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.ErrInvalidInput, http.StatusBadRequest},
		{apperr.ErrGatewayRejected, http.StatusBadRequest},
		{apperr.ErrBackendRejected, http.StatusBadRequest},
		{apperr.ErrBackendUnavailable, http.StatusBadGateway},
		{apperr.ErrUnconfigured, http.StatusInternalServerError},
		{apperr.ErrGatewayProtocol, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := tc.err
		s := newTestServer(&mockCheckoutService{
			CreateDraftOrderFunc: func(ctx context.Context, req *dto.CreateDraftOrderRequest) (*model.DraftOrderRef, error) {
				return nil, fmt.Errorf("shopify create draft order: %w", err)
			},
		})

		rec := do(t, s, http.MethodPost, "/api/create-draft-order", `{"variantId":"999"}`)
		assert.Equal(t, tc.status, rec.Code, err.Error())
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Contains(t, body["error"], err.Error())
	}
}

func TestVerifyPayment_MissingID(t *testing.T) {
	s := newTestServer(&mockCheckoutService{})

	rec := do(t, s, http.MethodGet, "/api/verify-payment", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"missing paymentId"}`, rec.Body.String())
}

func TestVerifyPayment_Paid(t *testing.T) {
	s := newTestServer(&mockCheckoutService{
		VerifyPaymentFunc: func(ctx context.Context, paymentID string) (*model.ReconciliationResult, error) {
			return &model.ReconciliationResult{
				Success:   true,
				Status:    model.ReconciliationPaid,
				Amount:    decimal.NewFromInt(25),
				Currency:  "KWD",
				InvoiceID: "4455",
				PaymentID: paymentID,
				Order:     &model.OrderResult{ID: "5566", OrderNumber: 1042, Name: "#1042"},
			}, nil
		},
	})

	rec := do(t, s, http.MethodGet, "/api/verify-payment?paymentId=p-2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, "p-2", body["paymentId"])
	order, ok := body["order"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5566", order["id"])
	assert.EqualValues(t, 1042, order["orderNumber"])
}

func TestWebhook_AcknowledgesOnBothRoutes(t *testing.T) {
	svc := &mockCheckoutService{}
	s := newTestServer(svc)

	payload := `{"EventType":1,"Data":{"InvoiceId":4455,"TransactionStatus":"SUCCESS"}}`
	for _, path := range []string{"/api/webhook", "/api/myfatoorah-webhook"} {
		rec := do(t, s, http.MethodPost, path, payload)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String(), path)
	}

	assert.Equal(t, []string{payload, payload}, svc.receivedWebhooks())
}

func TestWebhook_ServiceErrorStillAcknowledged(t *testing.T) {
	s := newTestServer(&mockCheckoutService{
		HandleWebhookFunc: func(body []byte) (bool, error) {
			return false, apperr.ErrInvalidInput
		},
	})

	rec := do(t, s, http.MethodPost, "/api/webhook", `{not json`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}
