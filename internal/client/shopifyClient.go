package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
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

const orderGatewayName = "MyFatoorah"

type CommerceBackendClient interface {
	Configured() bool
	CreateDraftOrder(ctx context.Context, in *DraftOrderInput) (*model.DraftOrderRef, error)
	DeleteDraftOrder(ctx context.Context, draftOrderID string) error
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	CreateOrder(ctx context.Context, in *CreateOrderInput) (*model.OrderResult, error)
}

type DraftOrderInput struct {
	VariantID     string
	Quantity      int
	CustomerEmail string
	CustomerPhone string
}

type CreateOrderInput struct {
	VariantID     string
	Quantity      int
	CustomerEmail string
	CustomerPhone string
	CustomerID    string
	InvoiceID     string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
}

type shopifyLineItem struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type shopifyDraftOrder struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type shopifyOrder struct {
	ID             int64  `json:"id"`
	OrderNumber    int64  `json:"order_number"`
	Name           string `json:"name"`
	OrderStatusURL string `json:"order_status_url"`
}

type shopifyTransaction struct {
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	Gateway       string `json:"gateway"`
	Authorization string `json:"authorization"`
}

type shopifyClientImpl struct {
	httpClient *http.Client
	cfg        *config.Shopify
	logger     zerolog.Logger
}

func NewShopifyClient(cfg *config.Shopify, logger zerolog.Logger) CommerceBackendClient {
	return &shopifyClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger.With().Str("component", "shopify").Logger(),
	}
}

func (c *shopifyClientImpl) Configured() bool {
	return c.cfg.Configured()
}

func (c *shopifyClientImpl) CreateDraftOrder(ctx context.Context, in *DraftOrderInput) (*model.DraftOrderRef, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: shopify access token or store domain missing", apperr.ErrUnconfigured)
	}
	lineItem, err := newLineItem(in.VariantID, in.Quantity)
	if err != nil {
		return nil, err
	}

	draft := map[string]any{
		"line_items": []shopifyLineItem{lineItem},
		"tags":       "myfatoorah-checkout",
	}
	if in.CustomerEmail != "" {
		draft["email"] = in.CustomerEmail
	}
	if phone := codec.NormalizePhone(in.CustomerPhone); phone != "" {
		draft["phone"] = "+" + phone
	}

	var resp struct {
		DraftOrder *shopifyDraftOrder `json:"draft_order"`
	}
	if err := c.do(ctx, http.MethodPost, "/draft_orders.json", map[string]any{"draft_order": draft}, &resp); err != nil {
		return nil, fmt.Errorf("create draft order: %w", err)
	}
	if resp.DraftOrder == nil || resp.DraftOrder.ID == 0 {
		return nil, fmt.Errorf("create draft order: %w: response lacks draft order id", apperr.ErrBackendUnavailable)
	}

	ref := &model.DraftOrderRef{
		ID:   strconv.FormatInt(resp.DraftOrder.ID, 10),
		Name: resp.DraftOrder.Name,
	}
	c.logger.Info().Str("draft_order_id", ref.ID).Str("draft_order_name", ref.Name).Msg("draft order created")
	return ref, nil
}

func (c *shopifyClientImpl) DeleteDraftOrder(ctx context.Context, draftOrderID string) error {
	if !c.Configured() {
		return fmt.Errorf("%w: shopify access token or store domain missing", apperr.ErrUnconfigured)
	}
	id := model.NormalizeShopifyID(draftOrderID)
	if id == "" {
		return fmt.Errorf("%w: draft order id is required", apperr.ErrInvalidInput)
	}

	if err := c.do(ctx, http.MethodDelete, "/draft_orders/"+url.PathEscape(id)+".json", nil, nil); err != nil {
		return fmt.Errorf("delete draft order %s: %w", id, err)
	}
	c.logger.Info().Str("draft_order_id", id).Msg("draft order deleted")
	return nil
}

func (c *shopifyClientImpl) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: shopify access token or store domain missing", apperr.ErrUnconfigured)
	}
	if email == "" {
		return "", nil
	}

	query := url.Values{}
	query.Set("query", "email:"+email)
	query.Set("limit", "1")
	query.Set("fields", "id,email")

	var resp struct {
		Customers []struct {
			ID int64 `json:"id"`
		} `json:"customers"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers/search.json?"+query.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("search customer: %w", err)
	}
	if len(resp.Customers) == 0 || resp.Customers[0].ID == 0 {
		return "", nil
	}
	return strconv.FormatInt(resp.Customers[0].ID, 10), nil
}

// CreateOrder records an already-paid order. The gateway invoice id is stored as the
// transaction authorization so the order can be traced back to its payment.
func (c *shopifyClientImpl) CreateOrder(ctx context.Context, in *CreateOrderInput) (*model.OrderResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: shopify access token or store domain missing", apperr.ErrUnconfigured)
	}
	lineItem, err := newLineItem(in.VariantID, in.Quantity)
	if err != nil {
		return nil, err
	}

	order := map[string]any{
		"line_items":       []shopifyLineItem{lineItem},
		"financial_status": "paid",
		"tags":             "myfatoorah,invoice-" + in.InvoiceID,
		"note_attributes": []map[string]string{
			{"name": "myfatoorah_invoice_id", "value": in.InvoiceID},
			{"name": "myfatoorah_transaction_id", "value": in.TransactionID},
		},
		"transactions": []shopifyTransaction{{
			Kind:          "sale",
			Status:        "success",
			Amount:        in.Amount.StringFixed(amountScale),
			Currency:      in.Currency,
			Gateway:       orderGatewayName,
			Authorization: in.InvoiceID,
		}},
	}
	if in.Currency != "" {
		order["currency"] = in.Currency
	}
	if id, err := strconv.ParseInt(model.NormalizeShopifyID(in.CustomerID), 10, 64); err == nil && id > 0 {
		order["customer"] = map[string]int64{"id": id}
	}
	if in.CustomerEmail != "" {
		order["email"] = in.CustomerEmail
		order["send_receipt"] = true
	}
	if phone := codec.NormalizePhone(in.CustomerPhone); phone != "" {
		order["phone"] = "+" + phone
	}

	var resp struct {
		Order *shopifyOrder `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders.json", map[string]any{"order": order}, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if resp.Order == nil || resp.Order.ID == 0 {
		return nil, fmt.Errorf("create order: %w: response lacks order id", apperr.ErrBackendUnavailable)
	}

	result := &model.OrderResult{
		ID:          strconv.FormatInt(resp.Order.ID, 10),
		OrderNumber: resp.Order.OrderNumber,
		Name:        resp.Order.Name,
		StatusURL:   resp.Order.OrderStatusURL,
	}
	c.logger.Info().
		Str("order_id", result.ID).
		Int64("order_number", result.OrderNumber).
		Str("invoice_id", in.InvoiceID).
		Msg("order created")
	return result, nil
}

func (c *shopifyClientImpl) baseURL() string {
	domain := strings.TrimSuffix(c.cfg.StoreDomain, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return fmt.Sprintf("%s/admin/api/%s", domain, c.cfg.APIVersion)
}

func (c *shopifyClientImpl) do(ctx context.Context, method, path string, payload any, out any) error {
	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: http new request: %v", apperr.ErrBackendUnavailable, err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http client do: %v", apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", apperr.ErrBackendUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", apperr.ErrBackendUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := shopifyErrors(respBody)
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("reason", reason).
			Msg("shopify rejected request")
		return fmt.Errorf("%w: status %d: %s", apperr.ErrBackendRejected, resp.StatusCode, reason)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", apperr.ErrBackendUnavailable, err)
	}
	return nil
}

// shopifyErrors flattens the "errors" member, which Shopify sends as a string,
// a list, or a map of field to messages.
func shopifyErrors(body []byte) string {
	var envelope struct {
		Errors jsoniter.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(envelope.Errors, &asString); err == nil {
		return asString
	}
	var asList []string
	if err := json.Unmarshal(envelope.Errors, &asList); err == nil {
		return strings.Join(asList, "; ")
	}
	var asMap map[string][]string
	if err := json.Unmarshal(envelope.Errors, &asMap); err == nil {
		fields := make([]string, 0, len(asMap))
		for field := range asMap {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, fmt.Sprintf("%s %s", field, strings.Join(asMap[field], ", ")))
		}
		return strings.Join(parts, "; ")
	}
	return string(envelope.Errors)
}

func newLineItem(variantID string, quantity int) (shopifyLineItem, error) {
	id, err := strconv.ParseInt(model.NormalizeShopifyID(variantID), 10, 64)
	if err != nil || id <= 0 {
		return shopifyLineItem{}, fmt.Errorf("%w: variant id %q is not a shopify id", apperr.ErrInvalidInput, variantID)
	}
	if quantity <= 0 {
		quantity = 1
	}
	return shopifyLineItem{VariantID: id, Quantity: quantity}, nil
}
