package controllers

import (
	"gradebook_go/middleware"
	"gradebook_go/models"
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
)

type JournalController struct {
	journals *services.JournalService
}

func NewJournalController(journals *services.JournalService) *JournalController {
	return &JournalController{journals: journals}
}

// SaveJournalRequest is a journal entry plus the optional attendance of its
// session, keyed by student id.
type SaveJournalRequest struct {
	models.JournalEntry
	Attendance map[string]models.AttendanceStatus `json:"attendance"`
}

// GetJournals returns all entries, newest first
func (jc *JournalController) GetJournals(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"journals": jc.journals.List()})
}

// CreateJournal saves an entry and the attendance of its session
func (jc *JournalController) CreateJournal(c *fiber.Ctx) error {
	var req SaveJournalRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := jc.journals.Save(c.UserContext(), req.JournalEntry, req.Attendance)
	if err != nil {
		if result.Entry.ID == "" {
			return respondError(c, err)
		}
		// the entry is stored; only the attendance write failed
		middleware.LogActivity(c, "CREATE", "journals", result.Entry.ID, fiber.Map{"attendance_error": err.Error()})
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error":   err.Error(),
			"journal": result.Entry,
		})
	}

	middleware.LogActivity(c, "CREATE", "journals", result.Entry.ID, fiber.Map{
		"attendance_records": result.AttendanceRecords,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":            "Journal saved successfully",
		"journal":            result.Entry,
		"attendance_records": result.AttendanceRecords,
	})
}

// DeleteJournal deletes an entry. Attendance of the session is kept.
func (jc *JournalController) DeleteJournal(c *fiber.Ctx) error {
	if err := jc.journals.Delete(c.UserContext(), param(c, "id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Journal deleted successfully"})
}
