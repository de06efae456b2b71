package controllers

import (
	"gradebook_go/middleware"
	"gradebook_go/models"
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
)

type AttendanceController struct {
	attendance *services.AttendanceService
}

func NewAttendanceController(attendance *services.AttendanceService) *AttendanceController {
	return &AttendanceController{attendance: attendance}
}

// SaveSessionRequest replaces the attendance of one session.
type SaveSessionRequest struct {
	models.SessionKey
	Records []services.AttendanceMark `json:"records"`
}

func sessionKeyFrom(c *fiber.Ctx) models.SessionKey {
	return models.SessionKey{
		Date:      c.Query("date"),
		ClassID:   c.Query("class_id"),
		SubjectID: c.Query("subject_id"),
	}
}

// GET /api/attendance/session?date=&class_id=&subject_id=
func (ac *AttendanceController) GetSession(c *fiber.Ctx) error {
	rows, err := ac.attendance.SessionSheet(sessionKeyFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"session": rows})
}

// POST /api/attendance/session
func (ac *AttendanceController) SaveSession(c *fiber.Ctx) error {
	var req SaveSessionRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	saved, err := ac.attendance.ReplaceSession(c.UserContext(), req.SessionKey, req.Records)
	if err != nil {
		return respondError(c, err)
	}
	middleware.LogActivity(c, "UPDATE", "attendance", req.ClassID, fiber.Map{
		"date":       req.Date,
		"subject_id": req.SubjectID,
		"records":    saved,
	})
	return c.JSON(fiber.Map{
		"message": "Attendance saved successfully",
		"saved":   saved,
	})
}

func (ac *AttendanceController) recap(c *fiber.Ctx) (services.AttendanceRecap, error) {
	dr := services.DateRange{Start: c.Query("start"), End: c.Query("end")}
	return ac.attendance.Recap(c.Query("class_id"), c.Query("subject_id"), dr)
}

// GET /api/attendance/recap?class_id=&subject_id=&start=&end=
func (ac *AttendanceController) GetRecap(c *fiber.Ctx) error {
	recap, err := ac.recap(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"recap": recap})
}

// GET /api/attendance/recap/export
func (ac *AttendanceController) ExportRecap(c *fiber.Ctx) error {
	recap, err := ac.recap(c)
	if err != nil {
		return respondError(c, err)
	}
	buf, err := services.AttendanceRecapWorkbook(recap)
	if err != nil {
		return respondError(c, err)
	}
	c.Attachment(exportName("rekap_absensi", recap.ClassName, recap.SubjectName) + ".xlsx")
	c.Set(fiber.HeaderContentType, services.XLSXContentType)
	return c.Send(buf.Bytes())
}
