package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/soulteary/herald-otp/internal/service"
)

// ErrorResponse is the common error body for API responses (ok, reason, optional message).
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// respondBadRequest sends 400 with reason and message.
func respondBadRequest(c *fiber.Ctx, reason, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{OK: false, Reason: reason, Message: message})
}

// respondError maps a service error to its status code and body.
func respondError(c *fiber.Ctx, err error) error {
	status, reason, message := classify(err)
	return c.Status(status).JSON(ErrorResponse{OK: false, Reason: reason, Message: message})
}

func classify(err error) (status int, reason, message string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return fiber.StatusBadRequest, "invalid_request", "invalid input"
	case errors.Is(err, service.ErrAlreadyExists):
		return fiber.StatusConflict, "already_exists", "Username already exists"
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, "not_found", "User not found"
	case errors.Is(err, service.ErrInvalidCode):
		return fiber.StatusUnauthorized, "invalid", "Invalid OTP"
	case errors.Is(err, service.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable, "store_unavailable", ""
	default:
		return fiber.StatusInternalServerError, "internal_error", ""
	}
}
