package repository

import (
	"context"
	"time"

	"payment-relay/internal/model"
)

// ReconciliationLedger collapses concurrent reconciliations of one gateway invoice
// (poll + webhook, or a redelivered webhook) into a single backend order.
type ReconciliationLedger interface {
	// Claim returns acquired=true when the caller now owns the invoice. Otherwise
	// the current claim is returned so the caller can reuse a completed order.
	Claim(ctx context.Context, invoiceID string) (claim *model.ReconciliationClaim, acquired bool, err error)
	Complete(ctx context.Context, claim *model.ReconciliationClaim, order *model.OrderResult) error
	Release(ctx context.Context, claim *model.ReconciliationClaim) error
	Close() error
}

func newClaim(invoiceID, owner string, now time.Time) *model.ReconciliationClaim {
	return &model.ReconciliationClaim{
		InvoiceID: invoiceID,
		Status:    model.ClaimInProgress,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func completeClaim(claim *model.ReconciliationClaim, order *model.OrderResult, now time.Time) {
	claim.Status = model.ClaimCompleted
	claim.UpdatedAt = now
	if order != nil {
		claim.OrderID = order.ID
		claim.OrderNumber = order.OrderNumber
		claim.OrderName = order.Name
		claim.OrderStatusURL = order.StatusURL
	}
}

type noopLedger struct{}

// NewNoopLedger keeps no claims: every caller acquires, so duplicate triggers
// may each create an order.
func NewNoopLedger() ReconciliationLedger {
	return noopLedger{}
}

func (noopLedger) Claim(ctx context.Context, invoiceID string) (*model.ReconciliationClaim, bool, error) {
	return newClaim(invoiceID, "", time.Now()), true, nil
}

func (noopLedger) Complete(ctx context.Context, claim *model.ReconciliationClaim, order *model.OrderResult) error {
	return nil
}

func (noopLedger) Release(ctx context.Context, claim *model.ReconciliationClaim) error {
	return nil
}

func (noopLedger) Close() error {
	return nil
}
