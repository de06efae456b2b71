package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gradebook_go/models"
	"gradebook_go/store"
)

// legacyKeys identify backups exported by the earlier browser version of the
// gradebook, which used Indonesian collection and field names and nested
// weight/score maps.
var legacyKeys = []string{"kelas", "siswa", "mapel", "kategori", "jurnal", "bobot", "nilai", "kehadiran"}

type legacyBackup struct {
	Kelas     []legacyNamed                               `json:"kelas"`
	Siswa     []legacyStudent                             `json:"siswa"`
	Mapel     []legacyNamed                               `json:"mapel"`
	Kategori  []legacyNamed                               `json:"kategori"`
	Jurnal    []legacyJournal                             `json:"jurnal"`
	Bobot     map[string]map[string]flexNumber            `json:"bobot"`
	Nilai     map[string]map[string]map[string]flexNumber `json:"nilai"`
	Kehadiran []legacyAttendance                          `json:"kehadiran"`
}

type legacyNamed struct {
	ID        flexString `json:"id"`
	Nama      string     `json:"nama"`
	Deskripsi string     `json:"deskripsi"`
}

type legacyStudent struct {
	ID      flexString `json:"id"`
	Nama    string     `json:"nama"`
	NIS     flexString `json:"nis"`
	KelasID flexString `json:"kelas_id"`
	Kelas   flexString `json:"kelasId"`
}

type legacyJournal struct {
	ID      flexString `json:"id"`
	Tanggal string     `json:"tanggal"`
	KelasID flexString `json:"kelas_id"`
	Kelas   flexString `json:"kelasId"`
	MapelID flexString `json:"mapel_id"`
	Mapel   flexString `json:"mapelId"`
	Materi  string     `json:"materi"`
	Metode  string     `json:"metode"`
	Catatan string     `json:"catatan"`
}

type legacyAttendance struct {
	ID         flexString `json:"id"`
	Tanggal    string     `json:"tanggal"`
	KelasID    flexString `json:"kelas_id"`
	Kelas      flexString `json:"kelasId"`
	MapelID    flexString `json:"mapel_id"`
	Mapel      flexString `json:"mapelId"`
	SiswaID    flexString `json:"siswa_id"`
	Siswa      flexString `json:"siswaId"`
	Status     string     `json:"status"`
	Keterangan string     `json:"keterangan"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexNumber(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number, got %s", data)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*f = flexNumber(v)
	return nil
}

func firstNonEmpty(values ...flexString) string {
	for _, v := range values {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}

func isLegacyBackup(top map[string]json.RawMessage) bool {
	for _, k := range legacyKeys {
		if _, ok := top[k]; ok {
			return true
		}
	}
	return false
}

func parseLegacyBackup(data []byte) (store.Snapshot, error) {
	var lb legacyBackup
	if err := json.Unmarshal(data, &lb); err != nil {
		return store.Snapshot{}, err
	}

	snap := store.Snapshot{}
	for _, k := range lb.Kelas {
		snap.Classes = append(snap.Classes, models.Class{ID: string(k.ID), Name: k.Nama})
	}
	for _, s := range lb.Siswa {
		snap.Students = append(snap.Students, models.Student{
			ID:       string(s.ID),
			Name:     s.Nama,
			IDNumber: string(s.NIS),
			ClassID:  firstNonEmpty(s.KelasID, s.Kelas),
		})
	}
	for _, m := range lb.Mapel {
		snap.Subjects = append(snap.Subjects, models.Subject{ID: string(m.ID), Name: m.Nama, Description: m.Deskripsi})
	}
	for _, k := range lb.Kategori {
		snap.Categories = append(snap.Categories, models.Category{ID: string(k.ID), Name: k.Nama, Description: k.Deskripsi})
	}
	for _, j := range lb.Jurnal {
		snap.Journals = append(snap.Journals, models.JournalEntry{
			ID:        string(j.ID),
			Date:      j.Tanggal,
			ClassID:   firstNonEmpty(j.KelasID, j.Kelas),
			SubjectID: firstNonEmpty(j.MapelID, j.Mapel),
			Topic:     j.Materi,
			Method:    j.Metode,
			Notes:     j.Catatan,
		})
	}
	for subjectID, byCategory := range lb.Bobot {
		for categoryID, percent := range byCategory {
			snap.Weights = append(snap.Weights, models.Weight{
				SubjectID:  subjectID,
				CategoryID: categoryID,
				Percent:    int(percent),
			})
		}
	}
	for studentID, bySubject := range lb.Nilai {
		for subjectID, byCategory := range bySubject {
			for categoryID, v := range byCategory {
				snap.Scores = append(snap.Scores, models.Score{
					StudentID:  studentID,
					SubjectID:  subjectID,
					CategoryID: categoryID,
					Value:      float64(v),
				})
			}
		}
	}
	for _, k := range lb.Kehadiran {
		snap.Attendance = append(snap.Attendance, models.AttendanceRecord{
			ID:        string(k.ID),
			Date:      k.Tanggal,
			ClassID:   firstNonEmpty(k.KelasID, k.Kelas),
			SubjectID: firstNonEmpty(k.MapelID, k.Mapel),
			StudentID: firstNonEmpty(k.SiswaID, k.Siswa),
			Status:    models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(k.Status))),
			Remark:    k.Keterangan,
		})
	}

	sort.Slice(snap.Weights, func(i, j int) bool {
		return snap.Weights[i].SubjectID+"/"+snap.Weights[i].CategoryID < snap.Weights[j].SubjectID+"/"+snap.Weights[j].CategoryID
	})
	sort.Slice(snap.Scores, func(i, j int) bool {
		a, b := snap.Scores[i], snap.Scores[j]
		return a.StudentID+"/"+a.SubjectID+"/"+a.CategoryID < b.StudentID+"/"+b.SubjectID+"/"+b.CategoryID
	})
	return snap, nil
}
