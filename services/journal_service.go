package services

import (
	"context"
	"sort"

	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/sirupsen/logrus"
)

// JournalService records teaching journals, optionally paired with the
// attendance of the same session.
type JournalService struct {
	store      *store.Store
	attendance *AttendanceService
}

func NewJournalService(st *store.Store, attendance *AttendanceService) *JournalService {
	return &JournalService{store: st, attendance: attendance}
}

// JournalView is a journal entry with its class and subject names resolved.
type JournalView struct {
	models.JournalEntry
	ClassName   string `json:"class_name"`
	SubjectName string `json:"subject_name"`
}

// List returns every entry, newest date first.
func (s *JournalService) List() []JournalView {
	entries := s.store.Journals()
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date > entries[j].Date })

	views := make([]JournalView, 0, len(entries))
	for _, e := range entries {
		v := JournalView{JournalEntry: e, ClassName: "-", SubjectName: "-"}
		if c, ok := s.store.Class(e.ClassID); ok {
			v.ClassName = c.Name
		}
		if sub, ok := s.store.Subject(e.SubjectID); ok {
			v.SubjectName = sub.Name
		}
		views = append(views, v)
	}
	return views
}

// JournalResult reports what Save wrote.
type JournalResult struct {
	Entry             models.JournalEntry `json:"entry"`
	AttendanceRecords int                 `json:"attendance_records"`
}

// Save stores the entry and, when attendance is given, replaces the
// attendance of the entry's session. Both inputs are validated before
// anything is written. If the attendance write fails the saved entry is
// still returned together with the error.
func (s *JournalService) Save(ctx context.Context, entry models.JournalEntry, attendance map[string]models.AttendanceStatus) (JournalResult, error) {
	entry = entry.Normalize()
	if err := models.Validate(entry); err != nil {
		return JournalResult{}, err
	}

	key := models.SessionKey{Date: entry.Date, ClassID: entry.ClassID, SubjectID: entry.SubjectID}
	marks := make([]AttendanceMark, 0, len(attendance))
	for studentID, status := range attendance {
		marks = append(marks, AttendanceMark{StudentID: studentID, Status: status})
	}
	if len(marks) > 0 {
		if _, err := s.attendance.sessionRecords(key, marks); err != nil {
			return JournalResult{}, err
		}
	}

	saved, err := s.store.SaveJournal(ctx, entry)
	if err != nil {
		logrus.WithError(err).Error("Failed to save journal entry")
		return JournalResult{}, err
	}
	result := JournalResult{Entry: saved}
	if len(marks) == 0 {
		return result, nil
	}

	n, err := s.attendance.ReplaceSession(ctx, key, marks)
	if err != nil {
		return result, err
	}
	result.AttendanceRecords = n
	return result, nil
}

// Delete removes an entry. Attendance of the session is kept.
func (s *JournalService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteJournal(ctx, id)
}
