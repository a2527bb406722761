// Package apperr holds the error taxonomy shared by the clients, services and HTTP handlers.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnconfigured       = errors.New("service not configured")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
	ErrGatewayProtocol    = errors.New("payment gateway protocol error")
	ErrBackendRejected    = errors.New("commerce backend rejected request")
	ErrBackendUnavailable = errors.New("commerce backend unavailable")
	ErrInternal           = errors.New("internal error")
)

// StatusCode maps an error to the HTTP status returned at the handler boundary.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrGatewayRejected),
		errors.Is(err, ErrBackendRejected):
		return http.StatusBadRequest
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
