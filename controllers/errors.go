package controllers

import (
	"errors"

	"gradebook_go/models"
	"gradebook_go/services"
	"gradebook_go/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, models.ErrValidation), errors.Is(err, services.ErrParse):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

// respondError writes {"error": message}. Attendance replaces that cleared a
// session without saving the new records also carry "partial": true.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}
	if errors.Is(err, store.ErrPartialReplace) {
		body["partial"] = true
	}
	if status >= fiber.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("Request failed")
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// parseBody decodes the JSON body into v.
func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return models.NewValidationError("", "Invalid request body")
	}
	return nil
}
