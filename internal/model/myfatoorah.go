package model

import (
	"bytes"
	"strconv"

	"github.com/shopspring/decimal"
)

// Envelope wraps every MyFatoorah v2 response.
type MyFatoorahEnvelope[T any] struct {
	IsSuccess        bool                        `json:"IsSuccess"`
	Message          string                      `json:"Message"`
	ValidationErrors []MyFatoorahValidationError `json:"ValidationErrors"`
	Data             *T                          `json:"Data"`
}

type MyFatoorahValidationError struct {
	Name  string `json:"Name"`
	Error string `json:"Error"`
}

type InvoiceItem struct {
	ItemName  string  `json:"ItemName"`
	Quantity  int     `json:"Quantity"`
	UnitPrice float64 `json:"UnitPrice"`
}

type SendPaymentRequest struct {
	CustomerName       string        `json:"CustomerName"`
	NotificationOption string        `json:"NotificationOption"`
	InvoiceValue       float64       `json:"InvoiceValue"`
	DisplayCurrencyIso string        `json:"DisplayCurrencyIso,omitempty"`
	CustomerEmail      string        `json:"CustomerEmail,omitempty"`
	CustomerMobile     string        `json:"CustomerMobile,omitempty"`
	CallBackUrl        string        `json:"CallBackUrl,omitempty"`
	ErrorUrl           string        `json:"ErrorUrl,omitempty"`
	Language           string        `json:"Language,omitempty"`
	CustomerReference  string        `json:"CustomerReference,omitempty"`
	UserDefinedField   string        `json:"UserDefinedField,omitempty"`
	InvoiceItems       []InvoiceItem `json:"InvoiceItems,omitempty"`
}

type SendPaymentData struct {
	InvoiceId         int64  `json:"InvoiceId"`
	InvoiceURL        string `json:"InvoiceURL"`
	CustomerReference string `json:"CustomerReference"`
	UserDefinedField  string `json:"UserDefinedField"`
}

type PaymentStatusRequest struct {
	Key     string `json:"Key"`
	KeyType string `json:"KeyType"`
}

type InvoiceTransaction struct {
	TransactionDate   string          `json:"TransactionDate"`
	PaymentGateway    string          `json:"PaymentGateway"`
	ReferenceId       string          `json:"ReferenceId"`
	TrackId           string          `json:"TrackId"`
	TransactionId     string          `json:"TransactionId"`
	PaymentId         string          `json:"PaymentId"`
	AuthorizationId   string          `json:"AuthorizationId"`
	TransactionStatus string          `json:"TransactionStatus"`
	TransationValue   decimal.Decimal `json:"TransationValue"`
	PaidCurrency      string          `json:"PaidCurrency"`
	Currency          string          `json:"Currency"`
	Error             string          `json:"Error"`
}

type PaymentStatusData struct {
	InvoiceId           int64                `json:"InvoiceId"`
	InvoiceStatus       string               `json:"InvoiceStatus"`
	InvoiceReference    string               `json:"InvoiceReference"`
	CustomerReference   string               `json:"CustomerReference"`
	InvoiceValue        decimal.Decimal      `json:"InvoiceValue"`
	InvoiceDisplayValue string               `json:"InvoiceDisplayValue"`
	CustomerEmail       string               `json:"CustomerEmail"`
	CustomerMobile      string               `json:"CustomerMobile"`
	UserDefinedField    string               `json:"UserDefinedField"`
	InvoiceTransactions []InvoiceTransaction `json:"InvoiceTransactions"`
}

// LooseString decodes either a JSON string or a JSON number into its text form.
// MyFatoorah sends EventType as a number in v2 webhooks and as a name in older ones.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		v, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	*s = LooseString(b)
	return nil
}

type WebhookData struct {
	InvoiceId         LooseString `json:"InvoiceId"`
	InvoiceReference  string      `json:"InvoiceReference"`
	CustomerReference string      `json:"CustomerReference"`
	TransactionStatus string      `json:"TransactionStatus"`
	InvoiceStatus     string      `json:"InvoiceStatus"`
	PaymentId         LooseString `json:"PaymentId"`
	UserDefinedField  string      `json:"UserDefinedField"`
}

type MyFatoorahWebhookEvent struct {
	EventType LooseString `json:"EventType"`
	Event     string      `json:"Event"`
	DateTime  string      `json:"DateTime"`
	Data      WebhookData `json:"Data"`
}
