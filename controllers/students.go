package controllers

import (
	"fmt"

	"gradebook_go/middleware"
	"gradebook_go/models"
	"gradebook_go/services"
	"gradebook_go/store"
	"gradebook_go/utils"

	"github.com/gofiber/fiber/v2"
)

type StudentController struct {
	store       *store.Store
	imports     *services.ImportService
	maxFileSize int64
}

func NewStudentController(st *store.Store, imports *services.ImportService, maxFileSize int64) *StudentController {
	return &StudentController{store: st, imports: imports, maxFileSize: maxFileSize}
}

// StudentView is a student with the resolved class name, "-" when unassigned
type StudentView struct {
	models.Student
	ClassName string `json:"class_name"`
}

func (sc *StudentController) view(st models.Student) StudentView {
	v := StudentView{Student: st, ClassName: "-"}
	if cl, ok := sc.store.Class(st.ClassID); ok {
		v.ClassName = cl.Name
	}
	return v
}

// GetStudents returns all students, optionally filtered by class_id
func (sc *StudentController) GetStudents(c *fiber.Ctx) error {
	students := sc.store.Students()
	if classID := c.Query("class_id"); classID != "" {
		students = sc.store.StudentsInClass(classID)
	}
	views := make([]StudentView, 0, len(students))
	for _, st := range students {
		views = append(views, sc.view(st))
	}
	return c.JSON(fiber.Map{"students": views})
}

// GetStudent returns a specific student by ID
func (sc *StudentController) GetStudent(c *fiber.Ctx) error {
	st, ok := sc.store.Student(param(c, "id"))
	if !ok {
		return respondError(c, models.NotFoundError("student", param(c, "id")))
	}
	return c.JSON(fiber.Map{"student": sc.view(st)})
}

// CreateStudent creates or overwrites a student
func (sc *StudentController) CreateStudent(c *fiber.Ctx) error {
	var st models.Student
	if err := parseBody(c, &st); err != nil {
		return respondError(c, err)
	}
	saved, err := sc.store.SaveStudent(c.UserContext(), st)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Student saved successfully",
		"student": sc.view(saved),
	})
}

// UpdateStudent overwrites the student with the given ID
func (sc *StudentController) UpdateStudent(c *fiber.Ctx) error {
	id := param(c, "id")
	if _, ok := sc.store.Student(id); !ok {
		return respondError(c, models.NotFoundError("student", id))
	}
	var st models.Student
	if err := parseBody(c, &st); err != nil {
		return respondError(c, err)
	}
	st.ID = id
	saved, err := sc.store.SaveStudent(c.UserContext(), st)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Student updated successfully",
		"student": sc.view(saved),
	})
}

// DeleteStudent deletes a student together with the student's scores
func (sc *StudentController) DeleteStudent(c *fiber.Ctx) error {
	if err := sc.store.DeleteStudent(c.UserContext(), param(c, "id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Student deleted successfully"})
}

// POST /api/students/import
// Multipart form with file field: file (.xlsx or .csv)
func (sc *StudentController) ImportStudents(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if !utils.IsValidFileExtension(fileHeader.Filename, services.ImportFileExtensions) {
		return badRequest(c, "file must be .xlsx or .csv")
	}
	if sc.maxFileSize > 0 && fileHeader.Size > sc.maxFileSize {
		return badRequest(c, fmt.Sprintf("file exceeds the %d byte limit", sc.maxFileSize))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "cannot open file")
	}
	defer file.Close()

	rows, err := services.ReadImportRows(fileHeader.Filename, file)
	if err != nil {
		return respondError(c, err)
	}
	result, err := sc.imports.Import(c.UserContext(), rows)
	if err != nil {
		return respondError(c, err)
	}

	middleware.LogActivity(c, "IMPORT", "students", "", fiber.Map{
		"file":            fileHeader.Filename,
		"imported":        result.Imported,
		"classes_created": len(result.ClassesCreated),
	})
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d students imported successfully", result.Imported),
		"result":  result,
	})
}

// GET /api/students/import/template
func (sc *StudentController) ImportTemplate(c *fiber.Ctx) error {
	buf, err := services.ImportTemplate()
	if err != nil {
		return respondError(c, err)
	}
	c.Attachment("student_import_template.xlsx")
	c.Set(fiber.HeaderContentType, services.XLSXContentType)
	return c.Send(buf.Bytes())
}
