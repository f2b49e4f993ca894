package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/catalog"
	"github.com/counseldesk/gateway/internal/gateway"
	"github.com/counseldesk/gateway/internal/upstream"
	"github.com/counseldesk/gateway/pkg/circuitbreaker"
	"github.com/counseldesk/gateway/pkg/logger"
)

// respondError maps the error taxonomy to HTTP statuses: validation
// errors to 400 (never logged as server faults), upstream and catalog
// failures to a single 502 carrying the underlying message, everything
// else to 500.
func respondError(c *fiber.Ctx, err error) error {
	var validationErr *gateway.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationErr.Msg,
		})
	}

	if isUpstreamFailure(err) {
		logger.Error("Upstream failure", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logger.Error("Request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func isUpstreamFailure(err error) bool {
	var timeoutErr *upstream.TimeoutError
	var transportErr *upstream.TransportError
	var protocolErr *upstream.ProtocolError
	var catalogErr *catalog.UnavailableError

	return errors.As(err, &timeoutErr) ||
		errors.As(err, &transportErr) ||
		errors.As(err, &protocolErr) ||
		errors.As(err, &catalogErr) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen)
}
