package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

// respondError maps a domain error to an HTTP status and JSON body.
// Unclassified failures become a generic 500 without leaking internals.
func respondError(c *fiber.Ctx, err error) error {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		slog.Error("Unclassified error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	status := fiber.StatusInternalServerError
	switch derr.Type {
	case domain.ErrNotFound:
		status = fiber.StatusNotFound
	case domain.ErrInvalidRequest, domain.ErrInvalidAmount:
		status = fiber.StatusBadRequest
	case domain.ErrInvalidState, domain.ErrKeyConflict, domain.ErrWalletExists, domain.ErrConcurrentModification:
		status = fiber.StatusConflict
	case domain.ErrInsufficientFunds, domain.ErrInvalidHoldState, domain.ErrRefundExceeded, domain.ErrTransferFailed:
		status = fiber.StatusUnprocessableEntity
	case domain.ErrInternal:
		slog.Error("Internal error", "op", derr.Op, "error", derr.Err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(status).JSON(fiber.Map{
		"error": derr.Message,
		"code":  string(derr.Type),
	})
}
