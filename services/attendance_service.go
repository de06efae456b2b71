package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"gradebook_go/models"
	"gradebook_go/store"
	"gradebook_go/utils"

	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// AttendanceService is the attendance ledger and its aggregator.
type AttendanceService struct {
	store *store.Store
}

func NewAttendanceService(st *store.Store) *AttendanceService {
	return &AttendanceService{store: st}
}

// AttendanceMark is one student's entry in a session form.
type AttendanceMark struct {
	StudentID string                  `json:"student_id"`
	Status    models.AttendanceStatus `json:"status"`
	Remark    string                  `json:"remark"`
}

// BuildSessionRecords turns form marks into attendance records. Marks with
// a blank status are skipped and a later mark for the same student replaces
// an earlier one.
func BuildSessionRecords(key models.SessionKey, marks []AttendanceMark) ([]models.AttendanceRecord, error) {
	if err := models.Validate(key); err != nil {
		return nil, err
	}

	index := map[string]int{}
	records := make([]models.AttendanceRecord, 0, len(marks))
	for _, m := range marks {
		studentID := strings.TrimSpace(m.StudentID)
		status := models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(string(m.Status))))
		if status == "" {
			continue
		}
		if studentID == "" {
			return nil, models.NewValidationError("student_id", "is required")
		}
		if !status.Valid() {
			return nil, models.NewValidationError("status", "%q must be one of H I S A", m.Status)
		}
		rec := models.AttendanceRecord{
			ID:        utils.GenerateID(),
			Date:      key.Date,
			ClassID:   key.ClassID,
			SubjectID: key.SubjectID,
			StudentID: studentID,
			Status:    status,
			Remark:    strings.TrimSpace(m.Remark),
		}
		if i, ok := index[studentID]; ok {
			records[i] = rec
			continue
		}
		index[studentID] = len(records)
		records = append(records, rec)
	}
	return records, nil
}

// sessionRecords builds the session's records and rejects marks for students
// outside the session's class.
func (s *AttendanceService) sessionRecords(key models.SessionKey, marks []AttendanceMark) ([]models.AttendanceRecord, error) {
	records, err := BuildSessionRecords(key, marks)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}
	members := map[string]bool{}
	for _, st := range s.store.StudentsInClass(key.ClassID) {
		members[st.ID] = true
	}
	for _, r := range records {
		if !members[r.StudentID] {
			return nil, models.NewValidationError("student_id", "student %q is not in class %q", r.StudentID, key.ClassID)
		}
	}
	return records, nil
}

// ReplaceSession replaces every record of the session with marks and returns
// the number of records written.
func (s *AttendanceService) ReplaceSession(ctx context.Context, key models.SessionKey, marks []AttendanceMark) (int, error) {
	records, err := s.sessionRecords(key, marks)
	if err != nil {
		return 0, err
	}

	fields := logrus.Fields{"date": key.Date, "class_id": key.ClassID, "subject_id": key.SubjectID}
	if err := s.store.ReplaceSession(ctx, key, records); err != nil {
		if errors.Is(err, store.ErrPartialReplace) {
			logrus.WithError(err).WithFields(fields).WithField("partial_replace", true).
				Warn("Attendance session cleared but new records were not saved; session must be saved again")
		} else {
			logrus.WithError(err).WithFields(fields).Error("Failed to save attendance session")
		}
		return 0, err
	}
	logrus.WithFields(fields).WithField("records", len(records)).Info("Attendance session saved")
	return len(records), nil
}

// SessionRow is a student's current entry in a session form.
type SessionRow struct {
	StudentID   string                  `json:"student_id"`
	StudentName string                  `json:"student_name"`
	IDNumber    string                  `json:"id_number"`
	Status      models.AttendanceStatus `json:"status"`
	Remark      string                  `json:"remark"`
}

// SessionSheet lists every student of the session's class with the status
// recorded for the session, empty when none.
func (s *AttendanceService) SessionSheet(key models.SessionKey) ([]SessionRow, error) {
	if err := models.Validate(key); err != nil {
		return nil, err
	}
	if _, ok := s.store.Class(key.ClassID); !ok {
		return nil, models.NotFoundError("class", key.ClassID)
	}

	current := map[string]models.AttendanceRecord{}
	for _, r := range s.store.SessionRecords(key) {
		current[r.StudentID] = r
	}
	rows := []SessionRow{}
	for _, st := range s.store.StudentsInClass(key.ClassID) {
		row := SessionRow{StudentID: st.ID, StudentName: st.Name, IDNumber: st.IDNumber}
		if r, ok := current[st.ID]; ok {
			row.Status = r.Status
			row.Remark = r.Remark
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DateRange bounds a recap inclusively; an empty bound is open.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r DateRange) validate() error {
	for field, v := range map[string]string{"start": r.Start, "end": r.End} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, v); err != nil {
			return models.NewValidationError(field, "must be a date formatted as YYYY-MM-DD")
		}
	}
	return nil
}

// Contains reports whether date lies within the range.
func (r DateRange) Contains(date string) bool {
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// AttendancePercentage is present/total as a whole percent rounded half up,
// or 0 when there are no records.
func AttendancePercentage(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

// AttendanceSummary counts one student's statuses over a date range.
type AttendanceSummary struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	IDNumber    string `json:"id_number"`
	Present     int    `json:"present"`
	Excused     int    `json:"excused"`
	Sick        int    `json:"sick"`
	Absent      int    `json:"absent"`
	Total       int    `json:"total"`
	Percentage  int    `json:"percentage"`
}

// AttendanceRecap is the per-student attendance table of a class and subject.
type AttendanceRecap struct {
	ClassID     string              `json:"class_id"`
	ClassName   string              `json:"class_name"`
	SubjectID   string              `json:"subject_id"`
	SubjectName string              `json:"subject_name"`
	Range       DateRange           `json:"range"`
	Rows        []AttendanceSummary `json:"rows"`
}

// Recap counts statuses for every student of the class. Records are matched
// on student, subject and date only, so a student's records taken while in
// another class still count.
func (s *AttendanceService) Recap(classID, subjectID string, dr DateRange) (AttendanceRecap, error) {
	if err := dr.validate(); err != nil {
		return AttendanceRecap{}, err
	}
	class, ok := s.store.Class(classID)
	if !ok {
		return AttendanceRecap{}, models.NotFoundError("class", classID)
	}
	subject, ok := s.store.Subject(subjectID)
	if !ok {
		return AttendanceRecap{}, models.NotFoundError("subject", subjectID)
	}

	students := s.store.StudentsInClass(classID)
	inClass := make(map[string]bool, len(students))
	for _, st := range students {
		inClass[st.ID] = true
	}
	counts := map[string]*AttendanceSummary{}
	for _, r := range s.store.AttendanceWhere(func(r models.AttendanceRecord) bool {
		return r.SubjectID == subjectID && inClass[r.StudentID] && dr.Contains(r.Date)
	}) {
		c := counts[r.StudentID]
		if c == nil {
			c = &AttendanceSummary{}
			counts[r.StudentID] = c
		}
		switch r.Status {
		case models.StatusPresent:
			c.Present++
		case models.StatusExcused:
			c.Excused++
		case models.StatusSick:
			c.Sick++
		case models.StatusAbsent:
			c.Absent++
		}
		c.Total++
	}

	recap := AttendanceRecap{
		ClassID:     class.ID,
		ClassName:   class.Name,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		Range:       dr,
		Rows:        []AttendanceSummary{},
	}
	for _, st := range students {
		row := AttendanceSummary{}
		if c := counts[st.ID]; c != nil {
			row = *c
		}
		row.StudentID = st.ID
		row.StudentName = st.Name
		row.IDNumber = st.IDNumber
		row.Percentage = AttendancePercentage(row.Present, row.Total)
		recap.Rows = append(recap.Rows, row)
	}
	return recap, nil
}
