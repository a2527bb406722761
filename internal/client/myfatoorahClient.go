package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"payment-relay/internal/apperr"
	"payment-relay/internal/codec"
	"payment-relay/internal/config"
	"payment-relay/internal/model"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type PaymentKeyType string

const (
	KeyTypePaymentID PaymentKeyType = "PaymentId"
	KeyTypeInvoiceID PaymentKeyType = "InvoiceId"
)

// invoice amounts are sent with three decimals, enough for KWD/BHD/OMR.
const amountScale = 3

type PaymentGatewayClient interface {
	CreatePayment(ctx context.Context, in *CreatePaymentInput) (*CreatePaymentResult, error)
	GetPaymentStatus(ctx context.Context, key string, keyType PaymentKeyType) (*model.PaymentRecord, error)
}

type CreatePaymentInput struct {
	Amount            decimal.Decimal
	CurrencyCode      string
	ItemDescription   string
	Quantity          int
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	ReturnURL         string
	ErrorURL          string
	CustomerReference string
	Context           model.PurchaseContext
}

type CreatePaymentResult struct {
	PaymentURL string
	PaymentID  string
	InvoiceID  string
}

type myFatoorahClientImpl struct {
	httpClient *http.Client
	cfg        *config.MyFatoorah
	logger     zerolog.Logger
}

func NewMyFatoorahClient(cfg *config.MyFatoorah, logger zerolog.Logger) PaymentGatewayClient {
	return &myFatoorahClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger.With().Str("component", "myfatoorah").Logger(),
	}
}

func (c *myFatoorahClientImpl) CreatePayment(ctx context.Context, in *CreatePaymentInput) (*CreatePaymentResult, error) {
	if !in.Amount.IsPositive() || !in.Amount.Round(amountScale).IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", apperr.ErrInvalidInput)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", apperr.ErrInvalidInput)
	}
	if !c.cfg.Configured() {
		return nil, fmt.Errorf("%w: payment gateway token missing", apperr.ErrUnconfigured)
	}

	udf, err := codec.EncodePurchaseContext(in.Context)
	if err != nil {
		return nil, err
	}

	currency := in.CurrencyCode
	if currency == "" {
		currency = c.cfg.Currency
	}
	returnURL := in.ReturnURL
	if returnURL == "" {
		returnURL = c.cfg.CallbackURL
	}
	errorURL := in.ErrorURL
	if errorURL == "" {
		errorURL = c.cfg.ErrorURL
	}
	if errorURL == "" {
		errorURL = returnURL
	}

	amount := in.Amount.Round(amountScale)
	payload := &model.SendPaymentRequest{
		CustomerName:       customerName(in.CustomerName, in.CustomerEmail),
		NotificationOption: "LNK",
		InvoiceValue:       amount.InexactFloat64(),
		DisplayCurrencyIso: currency,
		CustomerEmail:      in.CustomerEmail,
		CustomerMobile:     codec.NormalizePhone(in.CustomerPhone),
		CallBackUrl:        returnURL,
		ErrorUrl:           errorURL,
		Language:           c.cfg.Language,
		CustomerReference:  in.CustomerReference,
		UserDefinedField:   udf,
		InvoiceItems:       invoiceItems(in.ItemDescription, amount, in.Quantity),
	}

	var data model.SendPaymentData
	if err := c.call(ctx, "/v2/SendPayment", payload, &data); err != nil {
		return nil, fmt.Errorf("send payment: %w", err)
	}
	if data.InvoiceId == 0 || data.InvoiceURL == "" {
		return nil, fmt.Errorf("send payment: %w: response lacks invoice id or url", apperr.ErrGatewayProtocol)
	}

	invoiceID := strconv.FormatInt(data.InvoiceId, 10)
	c.logger.Info().
		Str("invoice_id", invoiceID).
		Str("amount", amount.StringFixed(amountScale)).
		Str("currency", currency).
		Msg("payment link created")

	return &CreatePaymentResult{
		PaymentURL: data.InvoiceURL,
		PaymentID:  invoiceID,
		InvoiceID:  invoiceID,
	}, nil
}

func (c *myFatoorahClientImpl) GetPaymentStatus(ctx context.Context, key string, keyType PaymentKeyType) (*model.PaymentRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: payment key is required", apperr.ErrInvalidInput)
	}
	if !c.cfg.Configured() {
		return nil, fmt.Errorf("%w: payment gateway token missing", apperr.ErrUnconfigured)
	}

	var data model.PaymentStatusData
	err := c.call(ctx, "/v2/GetPaymentStatus", &model.PaymentStatusRequest{
		Key:     key,
		KeyType: string(keyType),
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("get payment status: %w", err)
	}
	if data.InvoiceId == 0 || data.InvoiceStatus == "" {
		return nil, fmt.Errorf("get payment status: %w: response lacks invoice id or status", apperr.ErrGatewayProtocol)
	}

	record := &model.PaymentRecord{
		InvoiceID:        strconv.FormatInt(data.InvoiceId, 10),
		InvoiceValue:     data.InvoiceValue,
		Currency:         c.cfg.Currency,
		Status:           mapInvoiceStatus(data.InvoiceStatus),
		GatewayStatus:    data.InvoiceStatus,
		UserDefinedField: data.UserDefinedField,
	}
	if keyType == KeyTypePaymentID {
		record.PaymentID = key
	}

	if tx := settledTransaction(data.InvoiceTransactions); tx != nil {
		record.TransactionID = tx.TransactionId
		if record.PaymentID == "" {
			record.PaymentID = tx.PaymentId
		}
		switch {
		case tx.Currency != "":
			record.Currency = tx.Currency
		case tx.PaidCurrency != "":
			record.Currency = tx.PaidCurrency
		}
	}

	return record, nil
}

func (c *myFatoorahClientImpl) call(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseApiURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: http new request: %v", apperr.ErrGatewayProtocol, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http client do: %v", apperr.ErrGatewayProtocol, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", apperr.ErrGatewayProtocol, err)
	}

	var envelope struct {
		IsSuccess        bool                              `json:"IsSuccess"`
		Message          string                            `json:"Message"`
		ValidationErrors []model.MyFatoorahValidationError `json:"ValidationErrors"`
		Data             jsoniter.RawMessage               `json:"Data"`
	}
	decodeErr := json.Unmarshal(respBody, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !envelope.IsSuccess) {
		reason := rejectionReason(envelope.Message, envelope.ValidationErrors)
		if decodeErr != nil || reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		c.logger.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("reason", reason).
			Msg("gateway rejected request")
		return fmt.Errorf("%w: %s", apperr.ErrGatewayRejected, reason)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: decode response: %v", apperr.ErrGatewayProtocol, decodeErr)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("%w: response has no data", apperr.ErrGatewayProtocol)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", apperr.ErrGatewayProtocol, err)
	}
	return nil
}

func rejectionReason(message string, validation []model.MyFatoorahValidationError) string {
	parts := make([]string, 0, len(validation)+1)
	if message != "" {
		parts = append(parts, message)
	}
	for _, v := range validation {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Name, v.Error))
	}
	return strings.Join(parts, "; ")
}

func invoiceItems(description string, amount decimal.Decimal, quantity int) []model.InvoiceItem {
	if description == "" {
		description = "Order"
	}
	qty := decimal.NewFromInt(int64(quantity))
	unit := amount.DivRound(qty, amountScale)
	if unit.Mul(qty).Equal(amount) {
		return []model.InvoiceItem{{
			ItemName:  description,
			Quantity:  quantity,
			UnitPrice: unit.InexactFloat64(),
		}}
	}
	// the gateway requires items to sum to InvoiceValue exactly
	return []model.InvoiceItem{{
		ItemName:  fmt.Sprintf("%s x %d", description, quantity),
		Quantity:  1,
		UnitPrice: amount.InexactFloat64(),
	}}
}

func customerName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "Customer"
}

func mapInvoiceStatus(status string) model.PaymentStatus {
	switch strings.ToLower(status) {
	case "paid":
		return model.PaymentStatusPaid
	case "pending":
		return model.PaymentStatusPending
	default:
		return model.PaymentStatusOther
	}
}

func settledTransaction(txs []model.InvoiceTransaction) *model.InvoiceTransaction {
	if len(txs) == 0 {
		return nil
	}
	for i := range txs {
		switch strings.ToLower(txs[i].TransactionStatus) {
		case "succss", "success", "paid":
			return &txs[i]
		}
	}
	return &txs[len(txs)-1]
}
