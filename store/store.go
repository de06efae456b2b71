package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gradebook_go/models"
	"gradebook_go/utils"

	"golang.org/x/sync/errgroup"
)

// Snapshot is the full gradebook dataset in wire form. It is also the
// layout of a JSON backup file.
type Snapshot struct {
	Classes    []models.Class            `json:"classes"`
	Students   []models.Student          `json:"students"`
	Subjects   []models.Subject          `json:"subjects"`
	Categories []models.Category         `json:"categories"`
	Weights    []models.Weight           `json:"weights"`
	Scores     []models.Score            `json:"scores"`
	Journals   []models.JournalEntry     `json:"journal_entries"`
	Attendance []models.AttendanceRecord `json:"attendance_records"`
}

// RecordCount is the number of rows across all collections.
func (s Snapshot) RecordCount() int {
	return len(s.Classes) + len(s.Students) + len(s.Subjects) + len(s.Categories) +
		len(s.Weights) + len(s.Scores) + len(s.Journals) + len(s.Attendance)
}

type mirror struct {
	classes    []models.Class
	students   []models.Student
	subjects   []models.Subject
	categories []models.Category
	weights    map[models.WeightKey]int
	scores     map[models.ScoreKey]float64
	journals   []models.JournalEntry
	attendance []models.AttendanceRecord
}

func newMirror(snap Snapshot) mirror {
	m := mirror{
		classes:    append([]models.Class(nil), snap.Classes...),
		students:   append([]models.Student(nil), snap.Students...),
		subjects:   append([]models.Subject(nil), snap.Subjects...),
		categories: append([]models.Category(nil), snap.Categories...),
		weights:    make(map[models.WeightKey]int, len(snap.Weights)),
		scores:     make(map[models.ScoreKey]float64, len(snap.Scores)),
		journals:   append([]models.JournalEntry(nil), snap.Journals...),
		attendance: append([]models.AttendanceRecord(nil), snap.Attendance...),
	}
	for _, w := range snap.Weights {
		m.weights[w.Key()] = w.Percent
	}
	for _, sc := range snap.Scores {
		m.scores[sc.Key()] = sc.Value
	}
	return m
}

// Store is the in-memory mirror of every gradebook collection. Mutations
// are written through to the backend first and applied to the mirror only
// after the backend reports success, so a failed write leaves the mirror as
// it was. Concurrent edits of the same record are not coordinated: the later
// write wins at the backend.
type Store struct {
	backend Backend

	mu       sync.RWMutex
	data     mirror
	loaded   bool
	loadedAt time.Time
}

// New returns an empty, unloaded store over backend.
func New(backend Backend) *Store {
	return &Store{backend: backend, data: newMirror(Snapshot{})}
}

// Load fetches all eight collections and replaces the mirror. If any fetch
// fails the previous mirror is kept and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(c models.Collection, dest interface{}) {
		g.Go(func() error {
			if err := s.backend.SelectAll(gctx, c, dest); err != nil {
				return persistErr("select", c, err)
			}
			return nil
		})
	}
	fetch(models.CollectionClasses, &snap.Classes)
	fetch(models.CollectionStudents, &snap.Students)
	fetch(models.CollectionSubjects, &snap.Subjects)
	fetch(models.CollectionCategories, &snap.Categories)
	fetch(models.CollectionWeights, &snap.Weights)
	fetch(models.CollectionScores, &snap.Scores)
	fetch(models.CollectionJournals, &snap.Journals)
	fetch(models.CollectionAttendance, &snap.Attendance)
	if err := g.Wait(); err != nil {
		return err
	}

	next := newMirror(snap)
	s.mu.Lock()
	s.data = next
	s.loaded = true
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Reset empties the mirror without touching the backend.
func (s *Store) Reset() {
	s.mu.Lock()
	s.data = newMirror(Snapshot{})
	s.loaded = false
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// Loaded reports whether a Load has completed since the last Reset.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LoadedAt is when the mirror was last filled from the backend, zero if never.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Snapshot copies the mirror. Weights and scores are ordered by key.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Classes:    append([]models.Class{}, s.data.classes...),
		Students:   append([]models.Student{}, s.data.students...),
		Subjects:   append([]models.Subject{}, s.data.subjects...),
		Categories: append([]models.Category{}, s.data.categories...),
		Weights:    make([]models.Weight, 0, len(s.data.weights)),
		Scores:     make([]models.Score, 0, len(s.data.scores)),
		Journals:   append([]models.JournalEntry{}, s.data.journals...),
		Attendance: append([]models.AttendanceRecord{}, s.data.attendance...),
	}
	for k, p := range s.data.weights {
		snap.Weights = append(snap.Weights, models.Weight{SubjectID: k.SubjectID, CategoryID: k.CategoryID, Percent: p})
	}
	sort.Slice(snap.Weights, func(i, j int) bool {
		a, b := snap.Weights[i], snap.Weights[j]
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.CategoryID < b.CategoryID
	})
	for k, v := range s.data.scores {
		snap.Scores = append(snap.Scores, models.Score{StudentID: k.StudentID, SubjectID: k.SubjectID, CategoryID: k.CategoryID, Value: v})
	}
	sort.Slice(snap.Scores, func(i, j int) bool {
		a, b := snap.Scores[i], snap.Scores[j]
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.CategoryID < b.CategoryID
	})
	return snap
}

// Counts returns the number of mirrored rows per collection.
func (s *Store) Counts() map[models.Collection]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[models.Collection]int{
		models.CollectionClasses:    len(s.data.classes),
		models.CollectionStudents:   len(s.data.students),
		models.CollectionSubjects:   len(s.data.subjects),
		models.CollectionCategories: len(s.data.categories),
		models.CollectionWeights:    len(s.data.weights),
		models.CollectionScores:     len(s.data.scores),
		models.CollectionJournals:   len(s.data.journals),
		models.CollectionAttendance: len(s.data.attendance),
	}
}

// ---- reads ----

func (s *Store) Classes() []models.Class {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Class{}, s.data.classes...)
}

func (s *Store) Class(id string) (models.Class, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.data.classes, id, classID)
}

func (s *Store) Students() []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Student{}, s.data.students...)
}

// StudentsInClass returns the students whose class reference is classID.
func (s *Store) StudentsInClass(classID string) []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Student{}
	for _, st := range s.data.students {
		if st.ClassID == classID {
			out = append(out, st)
		}
	}
	return out
}

func (s *Store) Student(id string) (models.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.data.students, id, studentID)
}

func (s *Store) Subjects() []models.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Subject{}, s.data.subjects...)
}

func (s *Store) Subject(id string) (models.Subject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.data.subjects, id, subjectID)
}

func (s *Store) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Category{}, s.data.categories...)
}

func (s *Store) Category(id string) (models.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.data.categories, id, categoryID)
}

// Weight returns the percent stored for the cell, if any.
func (s *Store) Weight(key models.WeightKey) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.weights[key]
	return p, ok
}

// Weights returns the explicit weights of a subject keyed by category id.
func (s *Store) Weights(subjectID string) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]int{}
	for k, p := range s.data.weights {
		if k.SubjectID == subjectID {
			out[k.CategoryID] = p
		}
	}
	return out
}

// Score returns the stored value; ok is false when the cell is ungraded.
func (s *Store) Score(key models.ScoreKey) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.scores[key]
	return v, ok
}

// ScoreValues returns every stored score value.
func (s *Store) ScoreValues() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, 0, len(s.data.scores))
	for _, v := range s.data.scores {
		out = append(out, v)
	}
	return out
}

func (s *Store) Journals() []models.JournalEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.JournalEntry{}, s.data.journals...)
}

func (s *Store) Journal(id string) (models.JournalEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.data.journals, id, journalID)
}

// AttendanceWhere returns the attendance records accepted by keep.
func (s *Store) AttendanceWhere(keep func(models.AttendanceRecord) bool) []models.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.AttendanceRecord{}
	for _, r := range s.data.attendance {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// SessionRecords returns the attendance records of one session.
func (s *Store) SessionRecords(key models.SessionKey) []models.AttendanceRecord {
	return s.AttendanceWhere(func(r models.AttendanceRecord) bool { return r.Session() == key })
}

// ---- single-record writes ----

// SaveClass upserts a class by id, assigning a new id when it has none.
func (s *Store) SaveClass(ctx context.Context, c models.Class) (models.Class, error) {
	c = c.Normalize()
	if c.ID == "" {
		c.ID = utils.GenerateID()
	}
	if err := models.Validate(c); err != nil {
		return c, err
	}
	if err := s.backend.Upsert(ctx, models.CollectionClasses, []models.Class{c}); err != nil {
		return c, persistErr("upsert", models.CollectionClasses, err)
	}
	s.mu.Lock()
	s.data.classes = upsertByID(s.data.classes, c, classID)
	s.mu.Unlock()
	return c, nil
}

// SaveStudent upserts a student by id. The class reference is not checked.
func (s *Store) SaveStudent(ctx context.Context, st models.Student) (models.Student, error) {
	st = st.Normalize()
	if st.ID == "" {
		st.ID = utils.GenerateID()
	}
	if err := models.Validate(st); err != nil {
		return st, err
	}
	if err := s.backend.Upsert(ctx, models.CollectionStudents, []models.Student{st}); err != nil {
		return st, persistErr("upsert", models.CollectionStudents, err)
	}
	s.mu.Lock()
	s.data.students = upsertByID(s.data.students, st, studentID)
	s.mu.Unlock()
	return st, nil
}

func (s *Store) SaveSubject(ctx context.Context, sub models.Subject) (models.Subject, error) {
	sub = sub.Normalize()
	if sub.ID == "" {
		sub.ID = utils.GenerateID()
	}
	if err := models.Validate(sub); err != nil {
		return sub, err
	}
	if err := s.backend.Upsert(ctx, models.CollectionSubjects, []models.Subject{sub}); err != nil {
		return sub, persistErr("upsert", models.CollectionSubjects, err)
	}
	s.mu.Lock()
	s.data.subjects = upsertByID(s.data.subjects, sub, subjectID)
	s.mu.Unlock()
	return sub, nil
}

func (s *Store) SaveCategory(ctx context.Context, cat models.Category) (models.Category, error) {
	cat = cat.Normalize()
	if cat.ID == "" {
		cat.ID = utils.GenerateID()
	}
	if err := models.Validate(cat); err != nil {
		return cat, err
	}
	if err := s.backend.Upsert(ctx, models.CollectionCategories, []models.Category{cat}); err != nil {
		return cat, persistErr("upsert", models.CollectionCategories, err)
	}
	s.mu.Lock()
	s.data.categories = upsertByID(s.data.categories, cat, categoryID)
	s.mu.Unlock()
	return cat, nil
}

func (s *Store) SaveJournal(ctx context.Context, j models.JournalEntry) (models.JournalEntry, error) {
	j = j.Normalize()
	if j.ID == "" {
		j.ID = utils.GenerateID()
	}
	if err := models.Validate(j); err != nil {
		return j, err
	}
	if err := s.backend.Upsert(ctx, models.CollectionJournals, []models.JournalEntry{j}); err != nil {
		return j, persistErr("upsert", models.CollectionJournals, err)
	}
	s.mu.Lock()
	s.data.journals = upsertByID(s.data.journals, j, journalID)
	s.mu.Unlock()
	return j, nil
}

// ---- deletes ----

// DeleteClass removes a class. Students keep their now dangling class reference.
func (s *Store) DeleteClass(ctx context.Context, id string) error {
	if _, ok := s.Class(id); !ok {
		return models.NotFoundError("class", id)
	}
	if err := s.backend.Delete(ctx, models.CollectionClasses, Filter{"id": id}); err != nil {
		return persistErr("delete", models.CollectionClasses, err)
	}
	s.mu.Lock()
	s.data.classes = removeByID(s.data.classes, id, classID)
	s.mu.Unlock()
	return nil
}

// DeleteStudent removes a student and drops its scores from the mirror.
// The scores are left in the backend.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	if _, ok := s.Student(id); !ok {
		return models.NotFoundError("student", id)
	}
	if err := s.backend.Delete(ctx, models.CollectionStudents, Filter{"id": id}); err != nil {
		return persistErr("delete", models.CollectionStudents, err)
	}
	s.mu.Lock()
	s.data.students = removeByID(s.data.students, id, studentID)
	for k := range s.data.scores {
		if k.StudentID == id {
			delete(s.data.scores, k)
		}
	}
	s.mu.Unlock()
	return nil
}

// DeleteSubject removes a subject and drops its weights from the mirror.
// The weights are left in the backend.
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	if _, ok := s.Subject(id); !ok {
		return models.NotFoundError("subject", id)
	}
	if err := s.backend.Delete(ctx, models.CollectionSubjects, Filter{"id": id}); err != nil {
		return persistErr("delete", models.CollectionSubjects, err)
	}
	s.mu.Lock()
	s.data.subjects = removeByID(s.data.subjects, id, subjectID)
	for k := range s.data.weights {
		if k.SubjectID == id {
			delete(s.data.weights, k)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if _, ok := s.Category(id); !ok {
		return models.NotFoundError("category", id)
	}
	if err := s.backend.Delete(ctx, models.CollectionCategories, Filter{"id": id}); err != nil {
		return persistErr("delete", models.CollectionCategories, err)
	}
	s.mu.Lock()
	s.data.categories = removeByID(s.data.categories, id, categoryID)
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteJournal(ctx context.Context, id string) error {
	if _, ok := s.Journal(id); !ok {
		return models.NotFoundError("journal entry", id)
	}
	if err := s.backend.Delete(ctx, models.CollectionJournals, Filter{"id": id}); err != nil {
		return persistErr("delete", models.CollectionJournals, err)
	}
	s.mu.Lock()
	s.data.journals = removeByID(s.data.journals, id, journalID)
	s.mu.Unlock()
	return nil
}

// ---- batch writes ----

// InsertClasses appends new classes in one backend call.
func (s *Store) InsertClasses(ctx context.Context, classes []models.Class) error {
	if len(classes) == 0 {
		return nil
	}
	if err := s.backend.Insert(ctx, models.CollectionClasses, classes); err != nil {
		return persistErr("insert", models.CollectionClasses, err)
	}
	s.mu.Lock()
	s.data.classes = append(s.data.classes, classes...)
	s.mu.Unlock()
	return nil
}

// InsertStudents appends new students in one backend call.
func (s *Store) InsertStudents(ctx context.Context, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	if err := s.backend.Insert(ctx, models.CollectionStudents, students); err != nil {
		return persistErr("insert", models.CollectionStudents, err)
	}
	s.mu.Lock()
	s.data.students = append(s.data.students, students...)
	s.mu.Unlock()
	return nil
}

// UpsertWeights writes weight cells keyed by subject and category.
func (s *Store) UpsertWeights(ctx context.Context, weights []models.Weight) error {
	if len(weights) == 0 {
		return nil
	}
	if err := s.backend.Upsert(ctx, models.CollectionWeights, weights, "subject_id", "category_id"); err != nil {
		return persistErr("upsert", models.CollectionWeights, err)
	}
	s.mu.Lock()
	for _, w := range weights {
		s.data.weights[w.Key()] = w.Percent
	}
	s.mu.Unlock()
	return nil
}

// UpsertScores writes score cells keyed by student, subject and category.
func (s *Store) UpsertScores(ctx context.Context, scores []models.Score) error {
	if len(scores) == 0 {
		return nil
	}
	if err := s.backend.Upsert(ctx, models.CollectionScores, scores, "student_id", "subject_id", "category_id"); err != nil {
		return persistErr("upsert", models.CollectionScores, err)
	}
	s.mu.Lock()
	for _, sc := range scores {
		s.data.scores[sc.Key()] = sc.Value
	}
	s.mu.Unlock()
	return nil
}

// ReplaceSession deletes every record of the session and inserts records.
// Transactional backends apply both steps atomically. Otherwise a failed
// delete aborts before the insert, and a failed insert after a successful
// delete leaves the session empty and returns an error matching
// ErrPartialReplace.
func (s *Store) ReplaceSession(ctx context.Context, key models.SessionKey, records []models.AttendanceRecord) error {
	match := Filter{"date": key.Date, "class_id": key.ClassID, "subject_id": key.SubjectID}
	c := models.CollectionAttendance

	if tx, ok := s.backend.(Transactor); ok {
		err := tx.Transaction(ctx, func(b Backend) error {
			if err := b.Delete(ctx, c, match); err != nil {
				return persistErr("delete", c, err)
			}
			if err := b.Insert(ctx, c, records); err != nil {
				return persistErr("insert", c, err)
			}
			return nil
		})
		if err != nil {
			return asPersistErr("replace", c, err)
		}
		s.applySession(key, records)
		return nil
	}

	if err := s.backend.Delete(ctx, c, match); err != nil {
		return persistErr("delete", c, err)
	}
	if err := s.backend.Insert(ctx, c, records); err != nil {
		s.applySession(key, nil)
		return &PersistenceError{Op: "insert", Collection: c, Err: err, Partial: true}
	}
	s.applySession(key, records)
	return nil
}

func (s *Store) applySession(key models.SessionKey, records []models.AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]models.AttendanceRecord, 0, len(s.data.attendance)+len(records))
	for _, r := range s.data.attendance {
		if r.Session() != key {
			kept = append(kept, r)
		}
	}
	s.data.attendance = append(kept, records...)
}

// Restore replaces every collection with the snapshot's rows.
func (s *Store) Restore(ctx context.Context, snap Snapshot) error {
	err := s.atomically(ctx, func(b Backend) error {
		for _, c := range models.Collections {
			if err := b.Delete(ctx, c, Filter{}); err != nil {
				return persistErr("delete", c, err)
			}
		}
		inserts := []struct {
			c    models.Collection
			rows interface{}
			n    int
		}{
			{models.CollectionClasses, snap.Classes, len(snap.Classes)},
			{models.CollectionStudents, snap.Students, len(snap.Students)},
			{models.CollectionSubjects, snap.Subjects, len(snap.Subjects)},
			{models.CollectionCategories, snap.Categories, len(snap.Categories)},
			{models.CollectionWeights, snap.Weights, len(snap.Weights)},
			{models.CollectionScores, snap.Scores, len(snap.Scores)},
			{models.CollectionJournals, snap.Journals, len(snap.Journals)},
			{models.CollectionAttendance, snap.Attendance, len(snap.Attendance)},
		}
		for _, in := range inserts {
			if in.n == 0 {
				continue
			}
			if err := b.Insert(ctx, in.c, in.rows); err != nil {
				return persistErr("insert", in.c, err)
			}
		}
		return nil
	})
	if err != nil {
		return asPersistErr("restore", "", err)
	}

	next := newMirror(snap)
	s.mu.Lock()
	s.data = next
	s.loaded = true
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// ResetAll deletes every row of every collection.
func (s *Store) ResetAll(ctx context.Context) error {
	err := s.atomically(ctx, func(b Backend) error {
		for _, c := range models.Collections {
			if err := b.Delete(ctx, c, Filter{}); err != nil {
				return persistErr("delete", c, err)
			}
		}
		return nil
	})
	if err != nil {
		return asPersistErr("reset", "", err)
	}
	s.mu.Lock()
	s.data = newMirror(Snapshot{})
	s.mu.Unlock()
	return nil
}

func (s *Store) atomically(ctx context.Context, fn func(b Backend) error) error {
	if tx, ok := s.backend.(Transactor); ok {
		return tx.Transaction(ctx, fn)
	}
	return fn(s.backend)
}

func asPersistErr(op string, c models.Collection, err error) error {
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return persistErr(op, c, err)
}

// ---- helpers ----

func classID(c models.Class) string { return c.ID }
func studentID(s models.Student) string { return s.ID }
func subjectID(s models.Subject) string { return s.ID }
func categoryID(c models.Category) string { return c.ID }
func journalID(j models.JournalEntry) string { return j.ID }

func find[T any](list []T, id string, idOf func(T) string) (T, bool) {
	for _, item := range list {
		if idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func upsertByID[T any](list []T, rec T, idOf func(T) string) []T {
	for i := range list {
		if idOf(list[i]) == idOf(rec) {
			list[i] = rec
			return list
		}
	}
	return append(list, rec)
}

func removeByID[T any](list []T, id string, idOf func(T) string) []T {
	out := list[:0:0]
	for _, item := range list {
		if idOf(item) != id {
			out = append(out, item)
		}
	}
	return out
}
