package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidOptions = errors.New("invalid run options")
	ErrIdentifiers    = errors.New("identifier resolution failed")
)

// DeliveryError reports messages the sink rejected or could not deliver.
type DeliveryError struct {
	Sink   string
	Failed int
	Total  int
	Err    error // joined per-message errors
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed for %d of %d message(s): %v", e.Sink, e.Failed, e.Total, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

const (
	StatusOK            = "ok"
	StatusDeliveryError = "delivery_error"
	StatusInternalError = "internal_error"
)

// StatusCode maps a run error to the HTTP-style status reported to callers.
func StatusCode(err error) int {
	var deliveryErr *DeliveryError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.As(err, &deliveryErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func statusOf(err error) string {
	switch StatusCode(err) {
	case http.StatusOK:
		return StatusOK
	case http.StatusBadGateway:
		return StatusDeliveryError
	default:
		return StatusInternalError
	}
}
