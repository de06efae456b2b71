package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gradebook_go/models"
	"gradebook_go/storage"
	"gradebook_go/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const backupFolder = "backups"

// ObjectStorage is where backup archives are uploaded.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// BackupArchiveRepository records uploaded backup archives.
type BackupArchiveRepository interface {
	Create(ctx context.Context, archive *models.BackupArchive) error
	List(ctx context.Context) ([]models.BackupArchive, error)
}

// GormBackupArchiveRepository keeps archive records in the backup_archives table.
type GormBackupArchiveRepository struct {
	db *gorm.DB
}

func NewGormBackupArchiveRepository(db *gorm.DB) *GormBackupArchiveRepository {
	return &GormBackupArchiveRepository{db: db}
}

func (r *GormBackupArchiveRepository) Create(ctx context.Context, archive *models.BackupArchive) error {
	return r.db.WithContext(ctx).Create(archive).Error
}

func (r *GormBackupArchiveRepository) List(ctx context.Context) ([]models.BackupArchive, error) {
	var archives []models.BackupArchive
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&archives).Error
	return archives, err
}

// BackupService exports, restores, archives and wipes the whole gradebook.
type BackupService struct {
	store        *store.Store
	objects      ObjectStorage
	archives     BackupArchiveRepository
	resetKeyword string
	now          func() time.Time
}

// NewBackupService builds the service. objects and archives may be nil when
// object storage or the database is not available.
func NewBackupService(st *store.Store, objects ObjectStorage, archives BackupArchiveRepository, resetKeyword string) *BackupService {
	return &BackupService{
		store:        st,
		objects:      objects,
		archives:     archives,
		resetKeyword: resetKeyword,
		now:          time.Now,
	}
}

// BackupFileName is the download name of a backup taken at t.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("backup_nilai_%s.json", t.Format(dateLayout))
}

// Export serializes the current mirror and returns it with its file name.
func (s *BackupService) Export() ([]byte, string, error) {
	snap := s.store.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return data, BackupFileName(s.now()), nil
}

// ParseBackup decodes a backup file in either the current layout or the
// legacy browser layout and validates every record.
func ParseBackup(data []byte) (store.Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return store.Snapshot{}, parseErr("backup file", err)
	}

	var (
		snap store.Snapshot
		err  error
	)
	switch {
	case isLegacyBackup(top):
		snap, err = parseLegacyBackup(data)
	case hasAnyCollection(top):
		err = json.Unmarshal(data, &snap)
	default:
		err = errors.New("no gradebook collections found")
	}
	if err != nil {
		return store.Snapshot{}, parseErr("backup file", err)
	}
	if err := validateSnapshot(snap); err != nil {
		return store.Snapshot{}, parseErr("backup file", err)
	}
	return snap, nil
}

func hasAnyCollection(top map[string]json.RawMessage) bool {
	for _, c := range models.Collections {
		if _, ok := top[string(c)]; ok {
			return true
		}
	}
	return false
}

func validateSnapshot(snap store.Snapshot) error {
	check := func(c models.Collection, i int, v interface{}) error {
		if err := models.Validate(v); err != nil {
			return fmt.Errorf("%s[%d]: %w", c, i, err)
		}
		return nil
	}
	for i, r := range snap.Classes {
		if err := check(models.CollectionClasses, i, r); err != nil {
			return err
		}
	}
	for i, r := range snap.Students {
		if err := check(models.CollectionStudents, i, r); err != nil {
			return err
		}
	}
	for i, r := range snap.Subjects {
		if err := check(models.CollectionSubjects, i, r); err != nil {
			return err
		}
	}
	for i, r := range snap.Categories {
		if err := check(models.CollectionCategories, i, r); err != nil {
			return err
		}
	}
	for i, r := range snap.Weights {
		if err := check(models.CollectionWeights, i, r); err != nil {
			return err
		}
	}
	for i, r := range snap.Scores {
		if err := check(models.CollectionScores, i, r); err != nil {
			return err
		}
	}
	for i, r := range snap.Journals {
		if err := check(models.CollectionJournals, i, r); err != nil {
			return err
		}
	}
	for i, r := range snap.Attendance {
		if err := check(models.CollectionAttendance, i, r); err != nil {
			return err
		}
	}
	return nil
}

// Restore replaces every collection with the backup's content. A malformed
// file is rejected before anything is written.
func (s *BackupService) Restore(ctx context.Context, data []byte) (int, error) {
	snap, err := ParseBackup(data)
	if err != nil {
		return 0, err
	}
	if err := s.store.Restore(ctx, snap); err != nil {
		logrus.WithError(err).Error("Failed to restore backup")
		return 0, err
	}
	n := snap.RecordCount()
	logrus.WithField("records", n).Info("Backup restored")
	return n, nil
}

// Reset deletes every gradebook record when keyword matches the configured one.
func (s *BackupService) Reset(ctx context.Context, keyword string) error {
	if strings.TrimSpace(keyword) != s.resetKeyword {
		return models.NewValidationError("keyword", "is incorrect, reset cancelled")
	}
	if err := s.store.ResetAll(ctx); err != nil {
		logrus.WithError(err).Error("Failed to reset gradebook data")
		return err
	}
	logrus.Warn("All gradebook data has been reset")
	return nil
}

// Archive uploads the current backup to object storage and records it.
func (s *BackupService) Archive(ctx context.Context, trigger string) (*models.BackupArchive, error) {
	if s.objects == nil {
		return nil, errors.New("object storage is not configured")
	}
	data, name, err := s.Export()
	if err != nil {
		return nil, err
	}
	key := storage.BuildKey(backupFolder, s.now(), name)
	url, err := s.objects.Upload(ctx, key, data, "application/json")
	if err != nil {
		logrus.WithError(err).WithField("s3_key", key).Error("Failed to upload backup archive")
		return nil, err
	}

	archive := &models.BackupArchive{
		FileName:    name,
		S3Key:       key,
		URL:         url,
		RecordCount: s.store.Snapshot().RecordCount(),
		FileSize:    int64(len(data)),
		Trigger:     trigger,
	}
	if s.archives != nil {
		if err := s.archives.Create(ctx, archive); err != nil {
			logrus.WithError(err).Error("Failed to save backup archive metadata")
		}
	}
	logrus.WithFields(logrus.Fields{"s3_key": key, "trigger": trigger}).Info("Backup archived")
	return archive, nil
}

// ListArchives returns recorded archives, newest first.
func (s *BackupService) ListArchives(ctx context.Context) ([]models.BackupArchive, error) {
	if s.archives == nil {
		return []models.BackupArchive{}, nil
	}
	return s.archives.List(ctx)
}
