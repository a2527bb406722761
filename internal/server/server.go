package server

import (
	"context"

	"payment-relay/internal/config"
	"payment-relay/internal/handler"
	relaymw "payment-relay/internal/middleware"
	"payment-relay/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	healthHandler   *handler.HealthHandler
}

func NewServer(cfg *config.Config, checkoutService service.CheckoutService, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger.With().Str("component", "http").Logger())

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(relaymw.ContextLogger(logger))
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:            e,
		checkoutHandler: handler.NewCheckoutHandler(checkoutService, logger),
		healthHandler:   handler.NewHealthHandler(cfg),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/", s.healthHandler.Describe)

	api := s.echo.Group("/api")
	api.GET("/health", s.healthHandler.Health)

	api.POST("/create-draft-order", s.checkoutHandler.CreateDraftOrder)
	api.POST("/create-payment", s.checkoutHandler.CreatePayment)
	api.GET("/verify-payment", s.checkoutHandler.VerifyPayment)

	// -------- gateway webhooks --------
	api.POST("/webhook", s.checkoutHandler.Webhook)
	api.POST("/myfatoorah-webhook", s.checkoutHandler.Webhook)
}

func (s *Server) Handler() *echo.Echo {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	access := logger.With().Str("component", "access").Logger()
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := access.Info()
			if v.Error != nil {
				event = access.Warn().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
