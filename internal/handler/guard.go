package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const credentialsKey = "credentials"

// Credentials is the JSON body shared by the register and verify routes.
type Credentials struct {
	Username string `json:"username"`
	OTP      string `json:"otp"`
}

// ParseCredentials decodes the JSON body once and stores it in Locals for the
// guards and handlers that follow.
func ParseCredentials() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var creds Credentials
		if len(c.Body()) == 0 {
			return respondBadRequest(c, "invalid_request", "request body must be JSON")
		}
		if err := c.BodyParser(&creds); err != nil {
			return respondBadRequest(c, "invalid_request", "request body must be JSON")
		}
		c.Locals(credentialsKey, &creds)
		return c.Next()
	}
}

// RequireUsername rejects requests without a non-blank username.
func RequireUsername() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(credentialsFrom(c).Username) == "" {
			return respondBadRequest(c, "invalid_request", "Username is required")
		}
		return c.Next()
	}
}

// RequireOTP rejects requests without an otp field.
func RequireOTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if credentialsFrom(c).OTP == "" {
			return respondBadRequest(c, "invalid_request", "OTP is required")
		}
		return c.Next()
	}
}

func credentialsFrom(c *fiber.Ctx) *Credentials {
	if creds, ok := c.Locals(credentialsKey).(*Credentials); ok {
		return creds
	}
	return &Credentials{}
}
