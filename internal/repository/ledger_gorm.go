package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-relay/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormLedgerImpl struct {
	db           *gorm.DB
	claimTimeout time.Duration
}

// NewGormLedger keeps claims in a SQL table so several relay instances sharing
// the database dedup against each other. Completed claims are kept indefinitely.
func NewGormLedger(db *gorm.DB, claimTimeout time.Duration) ReconciliationLedger {
	return &gormLedgerImpl{
		db:           db,
		claimTimeout: claimTimeout,
	}
}

func (r *gormLedgerImpl) Claim(ctx context.Context, invoiceID string) (*model.ReconciliationClaim, bool, error) {
	now := time.Now()
	claim := newClaim(invoiceID, uuid.NewString(), now)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(claim)
	if result.Error != nil {
		return nil, false, fmt.Errorf("insert claim: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return claim, true, nil
	}

	var existing model.ReconciliationClaim
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// released between our insert and read; let the next trigger retry
		return &model.ReconciliationClaim{InvoiceID: invoiceID, Status: model.ClaimInProgress}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load claim: %w", err)
	}

	if existing.Status == model.ClaimInProgress && r.claimTimeout > 0 && now.Sub(existing.UpdatedAt) > r.claimTimeout {
		takeover := r.db.WithContext(ctx).
			Model(&model.ReconciliationClaim{}).
			Where("invoice_id = ? AND status = ? AND owner = ?", invoiceID, model.ClaimInProgress, existing.Owner).
			Updates(map[string]interface{}{
				"owner":      claim.Owner,
				"updated_at": now,
			})
		if takeover.Error != nil {
			return nil, false, fmt.Errorf("take over stale claim: %w", takeover.Error)
		}
		if takeover.RowsAffected == 1 {
			claim.CreatedAt = existing.CreatedAt
			return claim, true, nil
		}
	}

	return &existing, false, nil
}

func (r *gormLedgerImpl) Complete(ctx context.Context, claim *model.ReconciliationClaim, order *model.OrderResult) error {
	updates := map[string]interface{}{
		"status":     model.ClaimCompleted,
		"updated_at": time.Now(),
	}
	if order != nil {
		updates["order_id"] = order.ID
		updates["order_number"] = order.OrderNumber
		updates["order_name"] = order.Name
		updates["order_status_url"] = order.StatusURL
	}

	err := r.db.WithContext(ctx).
		Model(&model.ReconciliationClaim{}).
		Where("invoice_id = ? AND owner = ?", claim.InvoiceID, claim.Owner).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("complete claim: %w", err)
	}
	return nil
}

func (r *gormLedgerImpl) Release(ctx context.Context, claim *model.ReconciliationClaim) error {
	err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND owner = ? AND status = ?", claim.InvoiceID, claim.Owner, model.ClaimInProgress).
		Delete(&model.ReconciliationClaim{}).Error
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

func (r *gormLedgerImpl) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
