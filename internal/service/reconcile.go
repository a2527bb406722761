package service

import (
	"context"
	"fmt"

	"payment-relay/internal/client"
	"payment-relay/internal/codec"
	"payment-relay/internal/model"
	"payment-relay/internal/repository"

	"github.com/rs/zerolog"
)

// Reconciler turns a confirmed gateway payment into a backend order. The poll endpoint
// and the webhook task both go through Reconcile so their side effects match.
type Reconciler interface {
	Reconcile(ctx context.Context, record *model.PaymentRecord) *model.ReconciliationResult
}

type reconcilerImpl struct {
	backend client.CommerceBackendClient
	ledger  repository.ReconciliationLedger
	logger  zerolog.Logger
}

func NewReconciler(backend client.CommerceBackendClient, ledger repository.ReconciliationLedger, logger zerolog.Logger) Reconciler {
	if ledger == nil {
		ledger = repository.NewNoopLedger()
	}
	return &reconcilerImpl{
		backend: backend,
		ledger:  ledger,
		logger:  logger.With().Str("component", "reconciler").Logger(),
	}
}

func (r *reconcilerImpl) Reconcile(ctx context.Context, record *model.PaymentRecord) *model.ReconciliationResult {
	result := &model.ReconciliationResult{
		Amount:        record.InvoiceValue,
		Currency:      record.Currency,
		InvoiceID:     record.InvoiceID,
		PaymentID:     record.PaymentID,
		TransactionID: record.TransactionID,
	}
	log := r.logger.With().Str("invoice_id", record.InvoiceID).Logger()

	switch record.Status {
	case model.PaymentStatusPaid:
	case model.PaymentStatusPending:
		result.Status = model.ReconciliationPending
		result.Message = "payment is still pending"
		return result
	default:
		result.Status = model.ReconciliationFailed
		result.Message = fmt.Sprintf("payment was not completed (status %q)", record.GatewayStatus)
		return result
	}

	result.Success = true
	result.Status = model.ReconciliationPaid

	purchase := codec.DecodePurchaseContext(record.UserDefinedField)
	if purchase.IsEmpty() {
		log.Warn().Msg("paid invoice carries no purchase context")
	}

	if !r.backend.Configured() {
		if purchase.VariantID != "" || purchase.DraftOrderID != "" {
			log.Warn().Msg("commerce backend not configured, skipping order creation")
		}
		return result
	}

	if purchase.VariantID != "" {
		order, duplicate := r.createOrderOnce(ctx, log, record, purchase)
		result.Order = order
		if duplicate {
			return result
		}
	}

	if purchase.DraftOrderID != "" {
		if err := r.backend.DeleteDraftOrder(ctx, purchase.DraftOrderID); err != nil {
			log.Warn().Err(err).Str("draft_order_id", purchase.DraftOrderID).Msg("draft order cleanup failed")
		}
	}

	return result
}

// createOrderOnce reports duplicate=true when another reconciliation owns the invoice;
// that caller also handles draft cleanup.
func (r *reconcilerImpl) createOrderOnce(ctx context.Context, log zerolog.Logger, record *model.PaymentRecord, purchase model.PurchaseContext) (*model.OrderResult, bool) {
	claim, acquired, err := r.ledger.Claim(ctx, record.InvoiceID)
	if err != nil {
		log.Warn().Err(err).Msg("reconciliation ledger unavailable, creating order without dedup")
		claim, acquired = nil, true
	}
	if !acquired {
		if order := claim.Order(); order != nil {
			log.Info().Str("order_id", order.ID).Msg("invoice already reconciled")
			return order, true
		}
		log.Info().Msg("invoice reconciliation in progress elsewhere")
		return nil, true
	}

	order, err := r.createOrder(ctx, log, record, purchase)
	if claim == nil {
		return order, false
	}

	if err != nil {
		if relErr := r.ledger.Release(ctx, claim); relErr != nil {
			log.Warn().Err(relErr).Msg("release reconciliation claim")
		}
		return nil, false
	}
	if err := r.ledger.Complete(ctx, claim, order); err != nil {
		log.Warn().Err(err).Msg("complete reconciliation claim")
	}
	return order, false
}

func (r *reconcilerImpl) createOrder(ctx context.Context, log zerolog.Logger, record *model.PaymentRecord, purchase model.PurchaseContext) (*model.OrderResult, error) {
	customerID, err := r.backend.FindCustomerByEmail(ctx, purchase.CustomerEmail)
	if err != nil {
		log.Warn().Err(err).Msg("customer lookup failed, order will not be linked")
		customerID = ""
	}

	quantity := purchase.Quantity
	if quantity < 1 {
		quantity = 1
	}

	order, err := r.backend.CreateOrder(ctx, &client.CreateOrderInput{
		VariantID:     purchase.VariantID,
		Quantity:      quantity,
		CustomerEmail: purchase.CustomerEmail,
		CustomerPhone: purchase.CustomerPhone,
		CustomerID:    customerID,
		InvoiceID:     record.InvoiceID,
		TransactionID: record.TransactionID,
		Amount:        record.InvoiceValue,
		Currency:      record.Currency,
	})
	if err != nil {
		log.Error().Err(err).Str("variant_id", purchase.VariantID).Msg("order creation failed for paid invoice")
		return nil, err
	}
	return order, nil
}
