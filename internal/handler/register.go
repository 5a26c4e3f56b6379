package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soulteary/herald-otp/internal/service"
)

// RegisterResponse is the response for POST /register. Secret is returned
// exactly once; there is no way to read it back later.
type RegisterResponse struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
	Username   string `json:"username"`
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otp_auth_url"`
}

// Register handles POST /register. Expects ParseCredentials and RequireUsername before it.
func Register(svc *service.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds := credentialsFrom(c)
		e, err := svc.Register(c.UserContext(), creds.Username)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(RegisterResponse{
			OK:         true,
			Message:    "User registered",
			Username:   e.Username,
			Secret:     e.Secret,
			OTPAuthURL: e.ProvisioningURI,
		})
	}
}

// RegisterQR handles POST /register/qr and responds with a PNG of the provisioning URI.
func RegisterQR(svc *service.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds := credentialsFrom(c)
		png, err := svc.RegisterWithQR(c.UserContext(), creds.Username)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Send(png)
	}
}
