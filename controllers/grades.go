package controllers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gradebook_go/middleware"
	"gradebook_go/models"
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
)

type GradeController struct {
	grades *services.GradeService
}

func NewGradeController(grades *services.GradeService) *GradeController {
	return &GradeController{grades: grades}
}

// ScoreCell accepts a score sent either as a JSON number or as the raw text
// of an input cell. null decodes to a blank cell.
type ScoreCell string

func (s *ScoreCell) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*s = ""
	case string:
		*s = ScoreCell(v)
	case float64:
		*s = ScoreCell(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("score must be a number or a string")
	}
	return nil
}

// SaveScoresRequest is one category column of a class's grade sheet.
type SaveScoresRequest struct {
	SubjectID  string               `json:"subject_id"`
	CategoryID string               `json:"category_id"`
	Scores     map[string]ScoreCell `json:"scores"`
}

// GetSheet returns the grade-entry sheet for ?class_id, ?subject_id and ?category_id
func (gc *GradeController) GetSheet(c *fiber.Ctx) error {
	sheet, err := gc.grades.Sheet(c.Query("class_id"), c.Query("subject_id"), c.Query("category_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"sheet": sheet})
}

// SaveScores stores every non-blank score in the request. Blank cells leave
// existing scores untouched.
func (gc *GradeController) SaveScores(c *fiber.Ctx) error {
	var req SaveScoresRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	values := make(map[string]string, len(req.Scores))
	for studentID, cell := range req.Scores {
		values[studentID] = string(cell)
	}

	saved, err := gc.grades.SaveScores(c.UserContext(), req.SubjectID, req.CategoryID, values)
	if err != nil {
		return respondError(c, err)
	}
	middleware.LogActivity(c, "UPDATE", "scores", req.SubjectID, fiber.Map{
		"category_id": req.CategoryID,
		"saved":       saved,
	})
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d scores saved successfully", saved),
		"saved":   saved,
	})
}

// GetRecap returns the weighted final scores of a class for a subject
func (gc *GradeController) GetRecap(c *fiber.Ctx) error {
	recap, err := gc.grades.Recap(c.Query("class_id"), c.Query("subject_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"recap": recap})
}

// GET /api/grades/recap/export?class_id=&subject_id=&format=xlsx|html
func (gc *GradeController) ExportRecap(c *fiber.Ctx) error {
	recap, err := gc.grades.Recap(c.Query("class_id"), c.Query("subject_id"))
	if err != nil {
		return respondError(c, err)
	}
	base := exportName("rekap_nilai", recap.ClassName, recap.SubjectName)

	switch format := strings.ToLower(c.Query("format", "xlsx")); format {
	case "xlsx":
		buf, err := services.GradeRecapWorkbook(recap)
		if err != nil {
			return respondError(c, err)
		}
		c.Attachment(base + ".xlsx")
		c.Set(fiber.HeaderContentType, services.XLSXContentType)
		return c.Send(buf.Bytes())
	case "html":
		page, err := services.GradeRecapHTML(recap)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(page)
	default:
		return respondError(c, models.NewValidationError("format", "must be xlsx or html, got %q", format))
	}
}

// exportName joins the parts into a file name safe for Content-Disposition.
func exportName(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
				return r
			case r == ' ' || r == '_':
				return '_'
			}
			return -1
		}, strings.TrimSpace(p))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "_")
}
