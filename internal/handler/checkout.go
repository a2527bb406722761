package handler

import (
	"io"
	"net/http"

	"payment-relay/internal/dto"
	"payment-relay/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxWebhookBody caps what we read from the gateway before acknowledging.
const maxWebhookBody = 1 << 20

type CheckoutHandler struct {
	checkoutService service.CheckoutService
	logger          zerolog.Logger
}

func NewCheckoutHandler(checkoutService service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		logger:          logger.With().Str("component", "handler").Logger(),
	}
}

func (h *CheckoutHandler) CreateDraftOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateDraftOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	ref, err := h.checkoutService.CreateDraftOrder(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.CreateDraftOrderResponse{
		Success:        true,
		DraftOrderID:   ref.ID,
		DraftOrderName: ref.Name,
	})
}

func (h *CheckoutHandler) CreatePayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.CreatePayment(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.CreatePaymentResponse{
		Success:    true,
		PaymentURL: result.PaymentURL,
		InvoiceID:  result.InvoiceID,
		PaymentID:  result.PaymentID,
	})
}

func (h *CheckoutHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()

	paymentID := c.QueryParam("paymentId")
	if paymentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing paymentId")
	}

	result, err := h.checkoutService.VerifyPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewVerifyPaymentResponse(result))
}

// Webhook acknowledges first; reconciliation is scheduled only after the response
// has been flushed, and its outcome never reaches the gateway.
func (h *CheckoutHandler) Webhook(c echo.Context) error {
	body, readErr := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))

	if err := c.JSON(http.StatusOK, map[string]bool{"success": true}); err != nil {
		return err
	}
	c.Response().Flush()

	log := h.requestLogger(c)
	if readErr != nil {
		log.Warn().Err(readErr).Msg("read webhook body")
		return nil
	}

	if _, err := h.checkoutService.HandleWebhook(body); err != nil {
		log.Warn().Err(err).Str("path", c.Path()).Msg("webhook not processed")
	}
	return nil
}

// requestLogger prefers the request-scoped logger so webhook warnings carry the request id.
func (h *CheckoutHandler) requestLogger(c echo.Context) *zerolog.Logger {
	if l := zerolog.Ctx(c.Request().Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}
