package model

import "time"

type ClaimStatus string

const (
	ClaimInProgress ClaimStatus = "IN_PROGRESS"
	ClaimCompleted  ClaimStatus = "COMPLETED"
)

// ReconciliationClaim marks a gateway invoice as being turned into a backend order.
// It holds no payment state, only who owns the invoice and the order it produced.
type ReconciliationClaim struct {
	InvoiceID      string      `gorm:"primaryKey;size:64;not null" json:"invoice_id"`
	Status         ClaimStatus `gorm:"size:32;index;not null" json:"status"`
	Owner          string      `gorm:"size:64;not null" json:"owner"`
	OrderID        string      `gorm:"size:64" json:"order_id,omitempty"`
	OrderNumber    int64       `json:"order_number,omitempty"`
	OrderName      string      `gorm:"size:64" json:"order_name,omitempty"`
	OrderStatusURL string      `gorm:"size:512" json:"order_status_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (c *ReconciliationClaim) Order() *OrderResult {
	if c == nil || c.Status != ClaimCompleted || c.OrderID == "" {
		return nil
	}
	return &OrderResult{
		ID:          c.OrderID,
		OrderNumber: c.OrderNumber,
		Name:        c.OrderName,
		StatusURL:   c.OrderStatusURL,
	}
}
