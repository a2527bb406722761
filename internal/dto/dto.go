package dto

import (
	"payment-relay/internal/model"

	"github.com/shopspring/decimal"
)

type CreateDraftOrderRequest struct {
	VariantID     model.ShopifyID `json:"variantId"`
	Quantity      *int            `json:"quantity"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone"`
}

type CreateDraftOrderResponse struct {
	Success        bool   `json:"success"`
	DraftOrderID   string `json:"draftOrderId"`
	DraftOrderName string `json:"draftOrderName"`
}

type CreatePaymentRequest struct {
	ProductID     model.ShopifyID `json:"productId"`
	VariantID     model.ShopifyID `json:"variantId"`
	ProductTitle  string          `json:"productTitle"`
	Quantity      *int            `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone"`
	DraftOrderID  model.ShopifyID `json:"draftOrderId"`
}

type CreatePaymentResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"paymentUrl"`
	InvoiceID  string `json:"invoiceId"`
	PaymentID  string `json:"paymentId"`
}

type OrderResponse struct {
	ID             string `json:"id"`
	OrderNumber    int64  `json:"orderNumber"`
	Name           string `json:"name,omitempty"`
	OrderStatusURL string `json:"orderStatusUrl,omitempty"`
}

type VerifyPaymentResponse struct {
	Success       bool           `json:"success"`
	Status        string         `json:"status"`
	Message       string         `json:"message,omitempty"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency,omitempty"`
	Order         *OrderResponse `json:"order"`
	InvoiceID     string         `json:"invoiceId,omitempty"`
	PaymentID     string         `json:"paymentId,omitempty"`
	TransactionID string         `json:"transactionId,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewVerifyPaymentResponse(res *model.ReconciliationResult) *VerifyPaymentResponse {
	resp := &VerifyPaymentResponse{
		Success:       res.Success,
		Status:        string(res.Status),
		Message:       res.Message,
		Amount:        res.Amount.InexactFloat64(),
		Currency:      res.Currency,
		InvoiceID:     res.InvoiceID,
		PaymentID:     res.PaymentID,
		TransactionID: res.TransactionID,
	}
	if res.Order != nil {
		resp.Order = &OrderResponse{
			ID:             res.Order.ID,
			OrderNumber:    res.Order.OrderNumber,
			Name:           res.Order.Name,
			OrderStatusURL: res.Order.StatusURL,
		}
	}
	return resp
}
