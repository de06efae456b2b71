package services

import (
	"context"
	"strings"

	"gradebook_go/models"
	"gradebook_go/store"
	"gradebook_go/utils"

	"github.com/sirupsen/logrus"
)

// ImportRow is one line of a student import file.
type ImportRow struct {
	Name      string `json:"name"`
	IDNumber  string `json:"id_number"`
	ClassName string `json:"class_name"`
}

func (r ImportRow) valid() bool {
	return r.Name != "" && r.IDNumber != ""
}

// ImportResult reports what an import created.
type ImportResult struct {
	Imported       int              `json:"imported"`
	ClassesCreated []models.Class   `json:"classes_created"`
	Skipped        int              `json:"skipped"`
	Students       []models.Student `json:"-"`
}

// RowsFromCells maps spreadsheet rows (header already removed) to import
// rows using the column order name, id number, class name.
func RowsFromCells(cells [][]string) []ImportRow {
	rows := make([]ImportRow, 0, len(cells))
	cell := func(r []string, i int) string {
		if i < len(r) {
			return utils.SanitizeString(r[i])
		}
		return ""
	}
	for _, r := range cells {
		rows = append(rows, ImportRow{Name: cell(r, 0), IDNumber: cell(r, 1), ClassName: cell(r, 2)})
	}
	return rows
}

// ImportService is the bulk student import reconciler.
type ImportService struct {
	store *store.Store
}

func NewImportService(st *store.Store) *ImportService {
	return &ImportService{store: st}
}

func classKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Import creates a student for every row with a name and id number. Class
// names are matched case-insensitively against existing classes; unknown
// names become new classes, saved in one batch before the students. Rows
// without a name or id number are skipped and do not create classes.
// Students are not deduplicated.
func (s *ImportService) Import(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	valid := make([]ImportRow, 0, len(rows))
	for _, r := range rows {
		r = ImportRow{
			Name:      strings.TrimSpace(r.Name),
			IDNumber:  strings.TrimSpace(r.IDNumber),
			ClassName: strings.TrimSpace(r.ClassName),
		}
		if r.valid() {
			valid = append(valid, r)
		}
	}
	result := ImportResult{Skipped: len(rows) - len(valid), ClassesCreated: []models.Class{}}
	if len(valid) == 0 {
		return result, models.NewValidationError("", "no valid student rows to import")
	}

	classIDs := map[string]string{}
	for _, c := range s.store.Classes() {
		if _, seen := classIDs[classKey(c.Name)]; !seen {
			classIDs[classKey(c.Name)] = c.ID
		}
	}
	for _, r := range valid {
		if r.ClassName == "" {
			continue
		}
		k := classKey(r.ClassName)
		if _, ok := classIDs[k]; ok {
			continue
		}
		c := models.Class{ID: utils.GenerateID(), Name: r.ClassName}
		classIDs[k] = c.ID
		result.ClassesCreated = append(result.ClassesCreated, c)
	}
	if err := s.store.InsertClasses(ctx, result.ClassesCreated); err != nil {
		logrus.WithError(err).Error("Import failed while creating classes")
		return ImportResult{}, err
	}

	students := make([]models.Student, 0, len(valid))
	for _, r := range valid {
		students = append(students, models.Student{
			ID:       utils.GenerateID(),
			Name:     r.Name,
			IDNumber: r.IDNumber,
			ClassID:  classIDs[classKey(r.ClassName)],
		})
	}
	if err := s.store.InsertStudents(ctx, students); err != nil {
		logrus.WithError(err).WithField("classes_created", len(result.ClassesCreated)).
			Error("Import failed while creating students")
		return ImportResult{}, err
	}

	result.Imported = len(students)
	result.Students = students
	logrus.WithFields(logrus.Fields{
		"imported":        result.Imported,
		"skipped":         result.Skipped,
		"classes_created": len(result.ClassesCreated),
	}).Info("Student import completed")
	return result, nil
}
