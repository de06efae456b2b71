package controllers

import (
	"encoding/json"
	"io"
	"strconv"

	"gradebook_go/models"
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LogController struct {
	logs *services.LogArchiveService
}

func NewLogController(logs *services.LogArchiveService) *LogController {
	return &LogController{logs: logs}
}

// LogResponse represents a log entry response
type LogResponse struct {
	ID         uint                   `json:"id"`
	UserID     string                 `json:"user_id"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	Details    map[string]interface{} `json:"details"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	CreatedAt  string                 `json:"created_at"`
}

func toLogResponse(l models.ActivityLog) LogResponse {
	resp := LogResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		Action:     l.Action,
		Resource:   l.Resource,
		ResourceID: l.ResourceID,
		IPAddress:  l.IPAddress,
		UserAgent:  l.UserAgent,
		CreatedAt:  l.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if !l.Details.IsNull() {
		if err := json.Unmarshal(l.Details, &resp.Details); err != nil {
			logrus.WithError(err).WithField("log_id", l.ID).Debug("Activity log details are not an object")
		}
	}
	return resp
}

// GetLogs retrieves paginated activity logs with filters
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	filter := services.LogFilter{
		UserID:    c.Query("user_id"),
		Action:    c.Query("action"),
		Resource:  c.Query("resource"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Page:      page,
		Limit:     limit,
	}
	logs, total, err := lc.logs.ListLogs(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]LogResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, toLogResponse(l))
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return c.JSON(fiber.Map{
		"logs":  items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// FlushCachedLogs writes every cached activity log to the database
func (lc *LogController) FlushCachedLogs(c *fiber.Ctx) error {
	flushed, err := lc.logs.FlushCachedLogsToDatabase(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Cached logs flushed successfully",
		"flushed": flushed,
	})
}

// POST /api/logs/archive?days=30
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "30"))
	if err != nil {
		return badRequest(c, "days must be a number")
	}
	archive, err := lc.logs.ArchiveOldLogs(c.UserContext(), days)
	if err != nil {
		return respondError(c, err)
	}
	if archive == nil {
		return c.JSON(fiber.Map{"message": "No logs to archive"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Logs archived successfully",
		"archive": archive,
	})
}

// GetArchives lists log archives
func (lc *LogController) GetArchives(c *fiber.Ctx) error {
	archives, err := lc.logs.GetArchivedLogs(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"archives": archives})
}

// DownloadArchive streams one archive zip
func (lc *LogController) DownloadArchive(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(c, "Invalid archive ID")
	}
	body, name, err := lc.logs.DownloadArchivedLogs(c.UserContext(), uint(id))
	if err != nil {
		return respondError(c, err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return respondError(c, err)
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "application/zip")
	return c.Send(data)
}
