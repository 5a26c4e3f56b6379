package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soulteary/herald-otp/internal/service"
)

// VerifyResponse is the response for POST /verify (success).
type VerifyResponse struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// Verify handles POST /verify. Expects ParseCredentials, RequireUsername and RequireOTP before it.
func Verify(svc *service.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds := credentialsFrom(c)
		if err := svc.Verify(c.UserContext(), creds.Username, creds.OTP); err != nil {
			return respondError(c, err)
		}
		return c.JSON(VerifyResponse{OK: true, Message: "OTP is valid", Username: creds.Username})
	}
}
