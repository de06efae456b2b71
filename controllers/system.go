package controllers

import (
	"io"
	"strings"

	"gradebook_go/middleware"
	"gradebook_go/services"
	"gradebook_go/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SystemController serves backup, restore, reset and reload.
type SystemController struct {
	store   *store.Store
	backups *services.BackupService
}

func NewSystemController(st *store.Store, backups *services.BackupService) *SystemController {
	return &SystemController{store: st, backups: backups}
}

// ResetRequest carries the confirmation keyword for a full reset.
type ResetRequest struct {
	Keyword string `json:"keyword"`
}

// GET /api/system/backup
func (sc *SystemController) DownloadBackup(c *fiber.Ctx) error {
	data, name, err := sc.backups.Export()
	if err != nil {
		return respondError(c, err)
	}
	middleware.LogActivity(c, "EXPORT", "backup", "", fiber.Map{"file": name})
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// POST /api/system/restore
// Accepts the backup either as multipart field "file" or as the raw JSON body.
func (sc *SystemController) Restore(c *fiber.Ctx) error {
	data, err := backupPayload(c)
	if err != nil {
		return respondError(c, err)
	}
	restored, err := sc.backups.Restore(c.UserContext(), data)
	if err != nil {
		return respondError(c, err)
	}
	middleware.LogActivity(c, "RESTORE", "backup", "", fiber.Map{"records": restored})
	return c.JSON(fiber.Map{
		"message": "Backup restored successfully",
		"records": restored,
	})
}

func backupPayload(c *fiber.Ctx) ([]byte, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "cannot open file")
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	body := c.Body()
	if len(body) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "backup file is required")
	}
	// fasthttp reuses the body buffer after the handler returns
	return append([]byte(nil), body...), nil
}

// POST /api/system/reset
func (sc *SystemController) Reset(c *fiber.Ctx) error {
	var req ResetRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := sc.backups.Reset(c.UserContext(), req.Keyword); err != nil {
		return respondError(c, err)
	}
	middleware.LogActivity(c, "RESET", "system", "", nil)
	return c.JSON(fiber.Map{"message": "All data deleted successfully"})
}

// POST /api/system/backup/archive
func (sc *SystemController) ArchiveBackup(c *fiber.Ctx) error {
	archive, err := sc.backups.Archive(c.UserContext(), "manual")
	if err != nil {
		return respondError(c, err)
	}
	middleware.LogActivity(c, "ARCHIVE", "backup", archive.S3Key, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Backup archived successfully",
		"archive": archive,
	})
}

// GET /api/system/backup/archives
func (sc *SystemController) ListArchives(c *fiber.Ctx) error {
	archives, err := sc.backups.ListArchives(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"archives": archives})
}

// POST /api/system/reload
func (sc *SystemController) Reload(c *fiber.Ctx) error {
	if err := sc.store.Load(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	counts := sc.store.Counts()
	logrus.WithField("counts", counts).Info("Store reloaded")
	return c.JSON(fiber.Map{
		"message": "Data reloaded successfully",
		"counts":  counts,
	})
}
