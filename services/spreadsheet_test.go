package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gradebook_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sheetRows(t *testing.T, buf *bytes.Buffer, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, sheet, f.GetSheetName(0))
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestImportTemplate(t *testing.T) {
	buf, err := ImportTemplate()
	require.NoError(t, err)
	rows := sheetRows(t, buf, ImportTemplateSheet)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Student Name", "ID Number", "Class Name"}, rows[0])
}

func TestReadImportRowsCSV(t *testing.T) {
	data := "Student Name,ID Number,Class Name\nAlice,001,X\n Bob , 002 ,\n"
	rows, err := ReadImportRows("students.csv", strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []ImportRow{
		{Name: "Alice", IDNumber: "001", ClassName: "X"},
		{Name: "Bob", IDNumber: "002"},
	}, rows)
}

func TestReadImportRowsXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Student Name", "ID Number", "Class Name"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Alice", "001", "Grade 1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Bob", "002", "grade 1"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rows, err := ReadImportRows("STUDENTS.XLSX", buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ImportRow{Name: "Bob", IDNumber: "002", ClassName: "grade 1"}, rows[1])
}

func TestReadImportRowsErrors(t *testing.T) {
	_, err := ReadImportRows("students.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ReadImportRows("students.csv", strings.NewReader("Student Name,ID Number,Class Name\n"))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ReadImportRows("students.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ReadImportRows("students.xlsx", strings.NewReader("definitely not a zip"))
	assert.ErrorIs(t, err, ErrParse)

	_, err = ReadImportRows("students.csv", strings.NewReader("a,\"b\nc"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestGradeRecapExports(t *testing.T) {
	st := seeded(t)
	grades := NewGradeService(st)
	ctx := context.Background()
	require.NoError(t, NewWeightService(st).SetWeights(ctx, "math", map[string]int{"tugas": 50, "uas": 50}))
	_, err := grades.SetScore(ctx, "s1", "math", "tugas", "90")
	require.NoError(t, err)
	_, err = grades.SetScore(ctx, "s1", "math", "uas", "70")
	require.NoError(t, err)

	recap, err := grades.Recap("c1", "math")
	require.NoError(t, err)

	buf, err := GradeRecapWorkbook(recap)
	require.NoError(t, err)
	rows := sheetRows(t, buf, GradeRecapSheet)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"No", "Student Name", "ID Number", "Tugas (50%)", "UTS (0%)", "UAS (50%)", "Final Score", "Grade"}, rows[0])
	assert.Equal(t, []string{"1", "Alice", "001", "90", "", "70", "80.00", "B"}, rows[1])

	html, err := GradeRecapHTML(recap)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<th>Final Score</th>")
	assert.Contains(t, string(html), "<td>80.00</td>")
	assert.Contains(t, string(html), "Class: VII-A")
}

func TestGradeRecapHTMLEscapesNames(t *testing.T) {
	html, err := GradeRecapHTML(GradeRecap{ClassName: "<script>", Rows: []RecapRow{{StudentName: "A & B"}}})
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
	assert.Contains(t, string(html), "A &amp; B")
}

func TestAttendanceRecapWorkbook(t *testing.T) {
	buf, err := AttendanceRecapWorkbook(AttendanceRecap{Rows: []AttendanceSummary{
		{StudentName: "Alice", IDNumber: "001", Present: 3, Absent: 1, Total: 4, Percentage: 75},
	}})
	require.NoError(t, err)
	rows := sheetRows(t, buf, AttendanceRecapSheet)
	require.Len(t, rows, 2)
	assert.Equal(t, "Attendance %", rows[0][8])
	assert.Equal(t, []string{"1", "Alice", "001", "3", "0", "0", "1", "4", "75"}, rows[1])
}
