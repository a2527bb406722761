package repository

import (
	"context"
	"sync"
	"time"

	"payment-relay/internal/model"

	"github.com/google/uuid"
)

const memorySweepThreshold = 1024

type memoryLedgerImpl struct {
	mu           sync.Mutex
	claims       map[string]*model.ReconciliationClaim
	claimTimeout time.Duration
	retention    time.Duration
	now          func() time.Time
}

// NewMemoryLedger dedups within one process only.
func NewMemoryLedger(claimTimeout, retention time.Duration) ReconciliationLedger {
	return &memoryLedgerImpl{
		claims:       make(map[string]*model.ReconciliationClaim),
		claimTimeout: claimTimeout,
		retention:    retention,
		now:          time.Now,
	}
}

func (r *memoryLedgerImpl) Claim(ctx context.Context, invoiceID string) (*model.ReconciliationClaim, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if len(r.claims) >= memorySweepThreshold {
		r.sweep(now)
	}

	if existing, ok := r.claims[invoiceID]; ok && !r.expired(existing, now) {
		cp := *existing
		return &cp, false, nil
	}

	claim := newClaim(invoiceID, uuid.NewString(), now)
	r.claims[invoiceID] = claim
	cp := *claim
	return &cp, true, nil
}

func (r *memoryLedgerImpl) Complete(ctx context.Context, claim *model.ReconciliationClaim, order *model.OrderResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.claims[claim.InvoiceID]
	if ok && existing.Owner != claim.Owner {
		return nil
	}
	if !ok {
		existing = newClaim(claim.InvoiceID, claim.Owner, r.now())
		r.claims[claim.InvoiceID] = existing
	}
	completeClaim(existing, order, r.now())
	return nil
}

func (r *memoryLedgerImpl) Release(ctx context.Context, claim *model.ReconciliationClaim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.claims[claim.InvoiceID]
	if ok && existing.Owner == claim.Owner && existing.Status == model.ClaimInProgress {
		delete(r.claims, claim.InvoiceID)
	}
	return nil
}

func (r *memoryLedgerImpl) Close() error {
	return nil
}

func (r *memoryLedgerImpl) expired(claim *model.ReconciliationClaim, now time.Time) bool {
	switch claim.Status {
	case model.ClaimInProgress:
		return r.claimTimeout > 0 && now.Sub(claim.UpdatedAt) > r.claimTimeout
	case model.ClaimCompleted:
		return r.retention > 0 && now.Sub(claim.UpdatedAt) > r.retention
	}
	return true
}

func (r *memoryLedgerImpl) sweep(now time.Time) {
	for id, claim := range r.claims {
		if r.expired(claim, now) {
			delete(r.claims, id)
		}
	}
}
