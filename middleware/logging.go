package middleware

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gradebook_go/database"
	"gradebook_go/models"
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		}).Info("HTTP Request")

		return err
	}
}

// LogActivity records an audit entry for the current request. The write
// happens in the background and never fails the request, so every string
// taken from the request is copied out of fiber's buffers first.
func LogActivity(c *fiber.Ctx, action, resource, resourceID string, details interface{}) {
	userID := "system"
	if claims, err := GetCurrentClaims(c); err == nil {
		userID = claims.ProfileID
	}

	entry := models.ActivityLog{
		UserID:     userID,
		Action:     fiberutils.CopyString(action),
		Resource:   fiberutils.CopyString(resource),
		ResourceID: fiberutils.CopyString(resourceID),
		IPAddress:  fiberutils.CopyString(c.IP()),
		UserAgent:  fiberutils.CopyString(c.Get("User-Agent")),
	}
	entry.CreatedAt = time.Now()

	meta := map[string]interface{}{
		"details":        details,
		"integrity_hash": integrityHash(entry),
		"request_id":     c.Get("X-Request-ID", uuid.NewString()),
		"method":         c.Method(),
		"path":           c.Path(),
		"status_code":    c.Response().StatusCode(),
	}
	if data, err := json.Marshal(meta); err == nil {
		entry.Details = data
	}

	go func(entry models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := services.RecordActivity(ctx, database.DB, database.GetRedisClient(), entry); err != nil {
			logrus.WithError(err).Warn("Failed to record activity log")
		}
	}(entry)
}

// integrityHash fingerprints the log for tamper detection
func integrityHash(l models.ActivityLog) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s",
		l.UserID,
		l.Action,
		l.Resource,
		l.ResourceID,
		l.IPAddress,
		l.UserAgent,
		l.CreatedAt.Format(time.RFC3339),
	)
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}

// LogActivityMiddleware automatically logs successful mutating requests
func LogActivityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || strings.Contains(c.Path(), "/auth/") {
			return c.Next()
		}

		err := c.Next()

		var action string
		switch c.Method() {
		case fiber.MethodPost:
			action = "CREATE"
		case fiber.MethodPut, fiber.MethodPatch:
			action = "UPDATE"
		case fiber.MethodDelete:
			action = "DELETE"
		default:
			return err
		}

		// /api/<resource>/...
		var resource string
		if parts := strings.Split(strings.Trim(c.Path(), "/"), "/"); len(parts) >= 2 {
			resource = parts[1]
		}

		if err == nil && c.Response().StatusCode() < 400 {
			LogActivity(c, action, resource, resourceIDFrom(c), nil)
		}
		return err
	}
}

func resourceIDFrom(c *fiber.Ctx) string {
	if id := c.Params("id"); id != "" {
		return id
	}
	return c.Params("subject_id")
}
