package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strings"

	"gradebook_go/models"
	"gradebook_go/utils"

	"github.com/xuri/excelize/v2"
)

const (
	GradeRecapSheet      = "Grade Recap"
	AttendanceRecapSheet = "Attendance Recap"
	ImportTemplateSheet  = "Students"

	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ImportTemplateHeader is the header row of the student import file.
var ImportTemplateHeader = []string{"Student Name", "ID Number", "Class Name"}

// ImportFileExtensions lists the accepted student import formats.
var ImportFileExtensions = []string{"xlsx", "csv"}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// Use first sheet
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

// ReadImportRows parses an uploaded .xlsx or .csv student file. The first
// row is the header and is dropped.
func ReadImportRows(filename string, r io.Reader) ([]ImportRow, error) {
	var (
		cells [][]string
		err   error
	)
	switch utils.FileExtension(filename) {
	case "xlsx":
		cells, err = readXLSX(r)
	case "csv":
		cells, err = readCSV(r)
	default:
		return nil, models.NewValidationError("file", "must be one of %s", strings.Join(ImportFileExtensions, ", "))
	}
	if err != nil {
		return nil, parseErr("spreadsheet "+filename, err)
	}
	if len(cells) <= 1 {
		return nil, models.NewValidationError("file", "contains no student rows")
	}
	return RowsFromCells(cells[1:]), nil
}

func newWorkbook(sheet string) (*excelize.File, int, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, 0, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, bold, nil
}

func writeRows(f *excelize.File, sheet string, headerStyle int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

func workbookBytes(sheet string, rows [][]interface{}) (*bytes.Buffer, error) {
	f, bold, err := newWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := writeRows(f, sheet, bold, rows); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

// ImportTemplate builds the empty student import workbook.
func ImportTemplate() (*bytes.Buffer, error) {
	header := make([]interface{}, len(ImportTemplateHeader))
	for i, h := range ImportTemplateHeader {
		header[i] = h
	}
	return workbookBytes(ImportTemplateSheet, [][]interface{}{header})
}

func gradeRecapTable(recap GradeRecap) [][]interface{} {
	header := []interface{}{"No", "Student Name", "ID Number"}
	for _, c := range recap.Categories {
		header = append(header, fmt.Sprintf("%s (%d%%)", c.Name, recap.Weights[c.ID]))
	}
	header = append(header, "Final Score", "Grade")

	rows := [][]interface{}{header}
	for i, r := range recap.Rows {
		line := []interface{}{i + 1, r.StudentName, r.IDNumber}
		for _, c := range recap.Categories {
			if v := r.Scores[c.ID]; v != nil {
				line = append(line, *v)
			} else {
				line = append(line, "")
			}
		}
		line = append(line, r.FinalScore.String(), r.Grade)
		rows = append(rows, line)
	}
	return rows
}

// GradeRecapWorkbook exports a grade recap as xlsx.
func GradeRecapWorkbook(recap GradeRecap) (*bytes.Buffer, error) {
	return workbookBytes(GradeRecapSheet, gradeRecapTable(recap))
}

// AttendanceRecapWorkbook exports an attendance recap as xlsx.
func AttendanceRecapWorkbook(recap AttendanceRecap) (*bytes.Buffer, error) {
	rows := [][]interface{}{{"No", "Student Name", "ID Number", "Present (H)", "Excused (I)", "Sick (S)", "Absent (A)", "Total", "Attendance %"}}
	for i, r := range recap.Rows {
		rows = append(rows, []interface{}{i + 1, r.StudentName, r.IDNumber, r.Present, r.Excused, r.Sick, r.Absent, r.Total, r.Percentage})
	}
	return workbookBytes(AttendanceRecapSheet, rows)
}

var recapHTML = template.Must(template.New("recap").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Grade Recap - {{.ClassName}} - {{.SubjectName}}</title></head>
<body>
<h2>Grade Recap</h2>
<p>Class: {{.ClassName}}<br>Subject: {{.SubjectName}}<br>Total weight: {{.WeightSum}}%</p>
<table border="1" cellspacing="0" cellpadding="4">
{{range $i, $row := .Table}}<tr>{{range $row}}{{if eq $i 0}}<th>{{.}}</th>{{else}}<td>{{.}}</td>{{end}}{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

// GradeRecapHTML renders a grade recap as a standalone HTML table.
func GradeRecapHTML(recap GradeRecap) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		ClassName   string
		SubjectName string
		WeightSum   int
		Table       [][]interface{}
	}{recap.ClassName, recap.SubjectName, recap.WeightSum, gradeRecapTable(recap)}
	if err := recapHTML.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
