package model

import "github.com/shopspring/decimal"

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusPending PaymentStatus = "Pending"
	// PaymentStatusOther covers failed, cancelled, expired and anything the gateway adds later.
	PaymentStatusOther PaymentStatus = "Other"
)

// PurchaseContext is carried through the gateway's UserDefinedField and read back on confirmation.
// Short json keys keep the encoded blob well under the gateway limit.
type PurchaseContext struct {
	ProductID     string `json:"pid,omitempty"`
	VariantID     string `json:"vid,omitempty"`
	ProductTitle  string `json:"t,omitempty"`
	Quantity      int    `json:"q,omitempty"`
	CustomerEmail string `json:"e,omitempty"`
	CustomerPhone string `json:"p,omitempty"`
	Source        string `json:"s,omitempty"`
	DraftOrderID  string `json:"d,omitempty"`
}

func (c PurchaseContext) IsEmpty() bool {
	return c == PurchaseContext{}
}

// PaymentRecord is the gateway's view of an invoice. Read-only to the relay.
type PaymentRecord struct {
	InvoiceID        string
	PaymentID        string
	InvoiceValue     decimal.Decimal
	Currency         string
	Status           PaymentStatus
	GatewayStatus    string
	UserDefinedField string
	TransactionID    string
}

type DraftOrderRef struct {
	ID   string
	Name string
}

type OrderResult struct {
	ID          string
	OrderNumber int64
	Name        string
	StatusURL   string
}

type ReconciliationStatus string

const (
	ReconciliationPaid    ReconciliationStatus = "paid"
	ReconciliationPending ReconciliationStatus = "pending"
	ReconciliationFailed  ReconciliationStatus = "failed"
)

type ReconciliationResult struct {
	Success       bool
	Status        ReconciliationStatus
	Message       string
	Amount        decimal.Decimal
	Currency      string
	Order         *OrderResult
	InvoiceID     string
	PaymentID     string
	TransactionID string
}
