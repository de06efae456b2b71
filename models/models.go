package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// Base model for operational tables (audit trail, archives). The gradebook
// collections below keep the fixed wire schema and do not embed it.
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = append((*j)[0:0], v...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Collection names one of the eight persisted gradebook collections.
type Collection string

const (
	CollectionClasses    Collection = "classes"
	CollectionStudents   Collection = "students"
	CollectionSubjects   Collection = "subjects"
	CollectionCategories Collection = "categories"
	CollectionWeights    Collection = "weights"
	CollectionScores     Collection = "scores"
	CollectionJournals   Collection = "journal_entries"
	CollectionAttendance Collection = "attendance_records"
)

// Collections lists every gradebook collection in load order.
var Collections = []Collection{
	CollectionClasses,
	CollectionStudents,
	CollectionSubjects,
	CollectionCategories,
	CollectionWeights,
	CollectionScores,
	CollectionJournals,
	CollectionAttendance,
}

// Model returns a pointer to the zero record stored in the collection.
func (c Collection) Model() interface{} {
	switch c {
	case CollectionClasses:
		return &Class{}
	case CollectionStudents:
		return &Student{}
	case CollectionSubjects:
		return &Subject{}
	case CollectionCategories:
		return &Category{}
	case CollectionWeights:
		return &Weight{}
	case CollectionScores:
		return &Score{}
	case CollectionJournals:
		return &JournalEntry{}
	case CollectionAttendance:
		return &AttendanceRecord{}
	}
	return nil
}

// Class model
type Class struct {
	ID   string `json:"id" gorm:"primaryKey;size:64"`
	Name string `json:"name" gorm:"size:255;not null" validate:"required"`
}

func (Class) TableName() string { return string(CollectionClasses) }

func (c Class) Normalize() Class {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	return c
}

// Student model. An empty ClassID means the student is unassigned.
type Student struct {
	ID       string `json:"id" gorm:"primaryKey;size:64"`
	Name     string `json:"name" gorm:"size:255;not null" validate:"required"`
	IDNumber string `json:"id_number" gorm:"size:100;not null" validate:"required"`
	ClassID  string `json:"class_id" gorm:"size:64;index"`
}

func (Student) TableName() string { return string(CollectionStudents) }

func (s Student) Normalize() Student {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.IDNumber = strings.TrimSpace(s.IDNumber)
	s.ClassID = strings.TrimSpace(s.ClassID)
	return s
}

// Subject model (mata pelajaran)
type Subject struct {
	ID          string `json:"id" gorm:"primaryKey;size:64"`
	Name        string `json:"name" gorm:"size:255;not null" validate:"required"`
	Description string `json:"description" gorm:"type:text"`
}

func (Subject) TableName() string { return string(CollectionSubjects) }

func (s Subject) Normalize() Subject {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	return s
}

// Category model, a grading component such as a quiz or a task
type Category struct {
	ID          string `json:"id" gorm:"primaryKey;size:64"`
	Name        string `json:"name" gorm:"size:255;not null" validate:"required"`
	Description string `json:"description" gorm:"type:text"`
}

func (Category) TableName() string { return string(CollectionCategories) }

func (c Category) Normalize() Category {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	return c
}

// Weight is the percent a category contributes to a subject's final score.
type Weight struct {
	SubjectID  string `json:"subject_id" gorm:"primaryKey;size:64" validate:"required"`
	CategoryID string `json:"category_id" gorm:"primaryKey;size:64" validate:"required"`
	Percent    int    `json:"percent" gorm:"not null;default:0" validate:"min=0,max=100"`
}

func (Weight) TableName() string { return string(CollectionWeights) }

// WeightKey identifies a weight cell.
type WeightKey struct {
	SubjectID  string
	CategoryID string
}

func (w Weight) Key() WeightKey {
	return WeightKey{SubjectID: w.SubjectID, CategoryID: w.CategoryID}
}

// Score is one graded cell. A missing Score means "ungraded", not zero.
type Score struct {
	StudentID  string  `json:"student_id" gorm:"primaryKey;size:64" validate:"required"`
	SubjectID  string  `json:"subject_id" gorm:"primaryKey;size:64" validate:"required"`
	CategoryID string  `json:"category_id" gorm:"primaryKey;size:64" validate:"required"`
	Value      float64 `json:"value" gorm:"not null"`
}

func (Score) TableName() string { return string(CollectionScores) }

// ScoreKey identifies a score cell.
type ScoreKey struct {
	StudentID  string
	SubjectID  string
	CategoryID string
}

func (s Score) Key() ScoreKey {
	return ScoreKey{StudentID: s.StudentID, SubjectID: s.SubjectID, CategoryID: s.CategoryID}
}

// JournalEntry is a teacher's log for one teaching session.
type JournalEntry struct {
	ID        string `json:"id" gorm:"primaryKey;size:64"`
	Date      string `json:"date" gorm:"size:10;not null;index" validate:"required,datetime=2006-01-02"`
	ClassID   string `json:"class_id" gorm:"size:64;not null;index" validate:"required"`
	SubjectID string `json:"subject_id" gorm:"size:64;not null;index" validate:"required"`
	Topic     string `json:"topic" gorm:"type:text;not null" validate:"required"`
	Method    string `json:"method" gorm:"type:text"`
	Notes     string `json:"notes" gorm:"type:text"`
}

func (JournalEntry) TableName() string { return string(CollectionJournals) }

func (j JournalEntry) Normalize() JournalEntry {
	j.ID = strings.TrimSpace(j.ID)
	j.Date = strings.TrimSpace(j.Date)
	j.ClassID = strings.TrimSpace(j.ClassID)
	j.SubjectID = strings.TrimSpace(j.SubjectID)
	j.Topic = strings.TrimSpace(j.Topic)
	j.Method = strings.TrimSpace(j.Method)
	j.Notes = strings.TrimSpace(j.Notes)
	return j
}

// AttendanceStatus is stored with the single-letter codes used by existing data.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "H"
	StatusExcused AttendanceStatus = "I"
	StatusSick    AttendanceStatus = "S"
	StatusAbsent  AttendanceStatus = "A"
)

// Valid reports whether the status is one of the four supported codes.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusExcused, StatusSick, StatusAbsent:
		return true
	}
	return false
}

// AttendanceRecord is one student's status in one session.
type AttendanceRecord struct {
	ID        string           `json:"id" gorm:"primaryKey;size:64"`
	Date      string           `json:"date" gorm:"size:10;not null;index:idx_attendance_session" validate:"required,datetime=2006-01-02"`
	ClassID   string           `json:"class_id" gorm:"size:64;not null;index:idx_attendance_session" validate:"required"`
	SubjectID string           `json:"subject_id" gorm:"size:64;not null;index:idx_attendance_session" validate:"required"`
	StudentID string           `json:"student_id" gorm:"size:64;not null;index" validate:"required"`
	Status    AttendanceStatus `json:"status" gorm:"size:1;not null" validate:"required,oneof=H I S A"`
	Remark    string           `json:"remark" gorm:"type:text"`
}

func (AttendanceRecord) TableName() string { return string(CollectionAttendance) }

// SessionKey identifies an attendance-taking event.
type SessionKey struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	ClassID   string `json:"class_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
}

func (a AttendanceRecord) Session() SessionKey {
	return SessionKey{Date: a.Date, ClassID: a.ClassID, SubjectID: a.SubjectID}
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     string `json:"user_id" gorm:"size:64;index"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID string `json:"resource_id" gorm:"size:64"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}

// BackupArchive tracks gradebook snapshots uploaded to object storage
type BackupArchive struct {
	BaseModel
	FileName    string `json:"file_name" gorm:"size:255;not null"`
	S3Key       string `json:"s3_key" gorm:"size:500;not null"`
	URL         string `json:"url" gorm:"size:1000"`
	RecordCount int    `json:"record_count" gorm:"not null"`
	FileSize    int64  `json:"file_size" gorm:"not null"`
	Trigger     string `json:"trigger" gorm:"size:20;not null;default:'manual'"` // manual, scheduled
}
