package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"payment-relay/internal/apperr"
	"payment-relay/internal/client"
	"payment-relay/internal/codec"
	"payment-relay/internal/dto"
	"payment-relay/internal/model"
	"payment-relay/internal/worker"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

const purchaseSource = "shopify-checkout"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TaskRunner runs work after the HTTP response has been sent.
type TaskRunner interface {
	Go(name string, fn worker.TaskFunc) (string, bool)
}

type CheckoutService interface {
	CreateDraftOrder(ctx context.Context, req *dto.CreateDraftOrderRequest) (*model.DraftOrderRef, error)
	CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*client.CreatePaymentResult, error)
	VerifyPayment(ctx context.Context, paymentID string) (*model.ReconciliationResult, error)
	// HandleWebhook schedules reconciliation for a paid-invoice notification and
	// reports whether it did. It never runs side effects on the caller's goroutine.
	HandleWebhook(body []byte) (bool, error)
}

type checkoutServiceImpl struct {
	gateway    client.PaymentGatewayClient
	backend    client.CommerceBackendClient
	reconciler Reconciler
	tasks      TaskRunner
	logger     zerolog.Logger
}

func NewCheckoutService(
	gateway client.PaymentGatewayClient,
	backend client.CommerceBackendClient,
	reconciler Reconciler,
	tasks TaskRunner,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		gateway:    gateway,
		backend:    backend,
		reconciler: reconciler,
		tasks:      tasks,
		logger:     logger.With().Str("component", "checkout").Logger(),
	}
}

func (s *checkoutServiceImpl) CreateDraftOrder(ctx context.Context, req *dto.CreateDraftOrderRequest) (*model.DraftOrderRef, error) {
	if req.VariantID == "" {
		return nil, fmt.Errorf("%w: variantId is required", apperr.ErrInvalidInput)
	}
	quantity, err := quantityOrDefault(req.Quantity)
	if err != nil {
		return nil, err
	}

	ref, err := s.backend.CreateDraftOrder(ctx, &client.DraftOrderInput{
		VariantID:     req.VariantID.String(),
		Quantity:      quantity,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		return nil, fmt.Errorf("shopify create draft order: %w", err)
	}
	return ref, nil
}

func (s *checkoutServiceImpl) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*client.CreatePaymentResult, error) {
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be greater than zero", apperr.ErrInvalidInput)
	}
	if req.VariantID == "" {
		return nil, fmt.Errorf("%w: variantId is required", apperr.ErrInvalidInput)
	}
	quantity, err := quantityOrDefault(req.Quantity)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.CustomerEmail)
	purchase := model.PurchaseContext{
		ProductID:     req.ProductID.String(),
		VariantID:     req.VariantID.String(),
		ProductTitle:  strings.TrimSpace(req.ProductTitle),
		Quantity:      quantity,
		CustomerEmail: email,
		CustomerPhone: codec.NormalizePhone(req.CustomerPhone),
		Source:        purchaseSource,
		DraftOrderID:  req.DraftOrderID.String(),
	}

	reference := purchase.DraftOrderID
	if reference == "" {
		reference = purchase.VariantID
	}

	result, err := s.gateway.CreatePayment(ctx, &client.CreatePaymentInput{
		Amount:            req.Price,
		ItemDescription:   purchase.ProductTitle,
		Quantity:          quantity,
		CustomerEmail:     email,
		CustomerPhone:     req.CustomerPhone,
		CustomerReference: reference,
		Context:           purchase,
	})
	if err != nil {
		return nil, fmt.Errorf("myfatoorah create payment: %w", err)
	}
	return result, nil
}

func (s *checkoutServiceImpl) VerifyPayment(ctx context.Context, paymentID string) (*model.ReconciliationResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: paymentId is required", apperr.ErrInvalidInput)
	}

	record, err := s.lookupPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("myfatoorah payment status: %w", err)
	}

	result := s.reconciler.Reconcile(ctx, record)
	s.logger.Info().
		Str("payment_id", paymentID).
		Str("invoice_id", result.InvoiceID).
		Str("status", string(result.Status)).
		Bool("order_created", result.Order != nil).
		Msg("payment verified")
	return result, nil
}

// lookupPayment accepts either id a shopper may hold: the PaymentId from the gateway
// redirect, or the invoice id returned by CreatePayment. The two id spaces are disjoint.
func (s *checkoutServiceImpl) lookupPayment(ctx context.Context, id string) (*model.PaymentRecord, error) {
	record, err := s.gateway.GetPaymentStatus(ctx, id, client.KeyTypePaymentID)
	if err == nil || !errors.Is(err, apperr.ErrGatewayRejected) {
		return record, err
	}

	s.logger.Debug().Err(err).Str("id", id).Msg("not a payment id, retrying as invoice id")
	record, invErr := s.gateway.GetPaymentStatus(ctx, id, client.KeyTypeInvoiceID)
	if invErr != nil {
		return nil, err
	}
	return record, nil
}

func (s *checkoutServiceImpl) HandleWebhook(body []byte) (bool, error) {
	var event model.MyFatoorahWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return false, fmt.Errorf("%w: decode webhook payload: %v", apperr.ErrInvalidInput, err)
	}

	if !isStatusChangeEvent(&event) {
		s.logger.Debug().
			Str("event_type", string(event.EventType)).
			Str("event", event.Event).
			Msg("webhook ignored: not a transaction status change")
		return false, nil
	}
	if !isPaidTransaction(&event.Data) {
		s.logger.Info().
			Str("invoice_id", string(event.Data.InvoiceId)).
			Str("transaction_status", event.Data.TransactionStatus).
			Msg("webhook ignored: transaction not paid")
		return false, nil
	}

	key, keyType := string(event.Data.InvoiceId), client.KeyTypeInvoiceID
	if key == "" {
		key, keyType = string(event.Data.PaymentId), client.KeyTypePaymentID
	}
	if key == "" {
		return false, fmt.Errorf("%w: webhook carries neither InvoiceId nor PaymentId", apperr.ErrInvalidInput)
	}

	taskID, ok := s.tasks.Go("reconcile-"+key, func(ctx context.Context) error {
		return s.reconcileFromWebhook(ctx, key, keyType)
	})
	if !ok {
		return false, fmt.Errorf("%w: shutting down, webhook for %s not processed", apperr.ErrInternal, key)
	}

	s.logger.Info().Str("task_id", taskID).Str("key", key).Str("key_type", string(keyType)).Msg("webhook reconciliation scheduled")
	return true, nil
}

func (s *checkoutServiceImpl) reconcileFromWebhook(ctx context.Context, key string, keyType client.PaymentKeyType) error {
	// the webhook body is unauthenticated; the gateway's own record decides
	record, err := s.gateway.GetPaymentStatus(ctx, key, keyType)
	if err != nil {
		return fmt.Errorf("webhook payment status %s: %w", key, err)
	}

	result := s.reconciler.Reconcile(ctx, record)
	s.logger.Info().
		Str("invoice_id", result.InvoiceID).
		Str("status", string(result.Status)).
		Bool("order_created", result.Order != nil).
		Msg("webhook reconciliation finished")
	return nil
}

func isStatusChangeEvent(event *model.MyFatoorahWebhookEvent) bool {
	for _, v := range []string{string(event.EventType), event.Event} {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "transactionstatuschanged", "transactionsstatuschanged":
			return true
		}
	}
	return false
}

func isPaidTransaction(data *model.WebhookData) bool {
	for _, v := range []string{data.TransactionStatus, data.InvoiceStatus} {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "paid", "success", "succss":
			return true
		}
	}
	return false
}

func quantityOrDefault(q *int) (int, error) {
	if q == nil {
		return 1, nil
	}
	if *q <= 0 {
		return 0, fmt.Errorf("%w: quantity must be greater than zero", apperr.ErrInvalidInput)
	}
	return *q, nil
}
