package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"gradebook_go/config"
	"gradebook_go/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// LogQueueKey is the sorted set of cached activity log keys, scored by unix time.
	LogQueueKey = "logs:queue"
	// LogCachePrefix prefixes every cached activity log entry.
	LogCachePrefix = "log:"
	// MinArchiveDays is the youngest age at which activity logs may be archived.
	MinArchiveDays = 7
)

// archiveObjectClient is the part of the S3 v2 client the archiver needs.
type archiveObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LogArchiveService flushes cached activity logs and archives old ones to S3
type LogArchiveService struct {
	db          *gorm.DB
	redisClient *redis.Client
	s3Client    archiveObjectClient
	bucket      string
	now         func() time.Time
}

// ArchivedLog is the exported representation stored inside archives
type ArchivedLog struct {
	ID         uint           `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewLogArchiveService builds the archiver. Without an AWS region archiving
// is disabled but flushing still works.
func NewLogArchiveService(db *gorm.DB, redisClient *redis.Client) *LogArchiveService {
	las := &LogArchiveService{
		db:          db,
		redisClient: redisClient,
		bucket:      config.AppConfig.S3BucketName,
		now:         time.Now,
	}
	if config.AppConfig.AWSRegion == "" {
		return las
	}
	cfg, err := awscfg.LoadDefaultConfig(context.Background(), awscfg.WithRegion(config.AppConfig.AWSRegion))
	if err != nil {
		logrus.WithError(err).Warn("Failed to load AWS config; log archiving disabled")
		return las
	}
	las.s3Client = s3.NewFromConfig(cfg)
	return las
}

// RecordActivity caches the log in Redis when available, otherwise writes it
// straight to the database.
func RecordActivity(ctx context.Context, db *gorm.DB, rdb *redis.Client, entry models.ActivityLog) error {
	if rdb != nil {
		err := cacheActivityLog(ctx, rdb, entry)
		if err == nil {
			return nil
		}
		logrus.WithError(err).Warn("Failed to cache activity log, saving directly to database")
	}
	if db == nil {
		return errors.New("no database available for activity log")
	}
	return db.WithContext(ctx).Create(&entry).Error
}

func cacheActivityLog(ctx context.Context, rdb *redis.Client, entry models.ActivityLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}
	key := fmt.Sprintf("%s%s:%s:%d", LogCachePrefix, entry.UserID, entry.Action, time.Now().UnixNano())

	pipe := rdb.TxPipeline()
	pipe.Set(ctx, key, data, 7*24*time.Hour)
	pipe.ZAdd(ctx, LogQueueKey, &redis.Z{Score: float64(entry.CreatedAt.Unix()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache log: %w", err)
	}
	return nil
}

// FlushCachedLogsToDatabase moves every queued log from Redis into the
// activity_logs table and returns how many were written.
func (las *LogArchiveService) FlushCachedLogsToDatabase(ctx context.Context) (int, error) {
	if las.redisClient == nil {
		return 0, errors.New("redis client not available")
	}
	if las.db == nil {
		return 0, errors.New("database not available")
	}

	keys, err := las.redisClient.ZRangeByScore(ctx, LogQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(las.now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read log queue: %w", err)
	}

	var processed, failed int
	for _, key := range keys {
		raw, err := las.redisClient.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// expired before it was flushed
				las.redisClient.ZRem(ctx, LogQueueKey, key)
			} else {
				logrus.WithError(err).WithField("key", key).Error("Failed to read cached log")
				failed++
			}
			continue
		}

		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).WithField("key", key).Error("Failed to decode cached log")
			failed++
			continue
		}
		if err := las.db.WithContext(ctx).Create(&entry).Error; err != nil {
			logrus.WithError(err).WithField("key", key).Error("Failed to save cached log")
			failed++
			continue
		}

		pipe := las.redisClient.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, LogQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to remove flushed log from cache")
		}
		processed++
	}

	logrus.WithFields(logrus.Fields{"flushed": processed, "errors": failed}).Info("Flushed cached activity logs")
	return processed, nil
}

// LogFilter narrows an activity log listing.
type LogFilter struct {
	UserID    string
	Action    string
	Resource  string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

func (f *LogFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}
}

// ListLogs returns one page of activity logs, newest first, and the total match count.
func (las *LogArchiveService) ListLogs(ctx context.Context, f LogFilter) ([]models.ActivityLog, int64, error) {
	if las.db == nil {
		return []models.ActivityLog{}, 0, nil
	}
	f.normalize()

	query := las.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		query = query.Where("resource = ?", f.Resource)
	}
	if f.StartDate != "" {
		start, err := time.Parse(dateLayout, f.StartDate)
		if err != nil {
			return nil, 0, models.NewValidationError("start_date", "must be a date formatted as YYYY-MM-DD")
		}
		query = query.Where("created_at >= ?", start)
	}
	if f.EndDate != "" {
		end, err := time.Parse(dateLayout, f.EndDate)
		if err != nil {
			return nil, 0, models.NewValidationError("end_date", "must be a date formatted as YYYY-MM-DD")
		}
		query = query.Where("created_at < ?", end.Add(24*time.Hour))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.ActivityLog
	err := query.Order("created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&logs).Error
	return logs, total, err
}

func toArchivedLog(l models.ActivityLog) ArchivedLog {
	a := ArchivedLog{
		ID:         l.ID,
		UserID:     l.UserID,
		Action:     l.Action,
		Resource:   l.Resource,
		ResourceID: l.ResourceID,
		IPAddress:  l.IPAddress,
		UserAgent:  l.UserAgent,
		CreatedAt:  l.CreatedAt,
	}
	if !l.Details.IsNull() {
		var details map[string]any
		if err := json.Unmarshal(l.Details, &details); err == nil {
			a.Details = details
		}
	}
	return a
}

// ArchiveOldLogs zips logs older than daysOld days, uploads the archive to S3
// and deletes the archived rows. It returns nil when there was nothing to archive.
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.LogArchive, error) {
	if daysOld < MinArchiveDays {
		return nil, models.NewValidationError("days", "must be at least %d", MinArchiveDays)
	}
	if las.db == nil {
		return nil, errors.New("database not available")
	}
	if las.s3Client == nil {
		return nil, errors.New("AWS not configured")
	}

	cutoff := las.now().AddDate(0, 0, -daysOld)
	var rows []models.ActivityLog
	if err := las.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch logs for archiving: %w", err)
	}
	if len(rows) == 0 {
		logrus.Info("No activity logs to archive")
		return nil, nil
	}

	logs := make([]ArchivedLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, toArchivedLog(r))
	}

	fileName := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format(dateLayout))
	buf, err := createLogZipArchive(logs, fileName, las.now())
	if err != nil {
		return nil, fmt.Errorf("failed to create ZIP archive: %w", err)
	}

	key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoff.Year(), cutoff.Month(), fileName)
	if _, err := las.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(las.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/zip"),
	}); err != nil {
		return nil, fmt.Errorf("failed to upload archive to S3: %w", err)
	}

	res := las.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to delete archived logs: %w", res.Error)
	}

	archive := &models.LogArchive{
		FileName:    fileName,
		S3Key:       key,
		StartDate:   logs[0].CreatedAt,
		EndDate:     cutoff,
		RecordCount: len(logs),
		FileSize:    int64(buf.Len()),
		Status:      "completed",
	}
	if err := las.db.WithContext(ctx).Create(archive).Error; err != nil {
		logrus.WithError(err).Error("Failed to save log archive metadata")
	}

	logrus.WithFields(logrus.Fields{
		"s3_key":  key,
		"records": len(logs),
		"deleted": res.RowsAffected,
	}).Info("Archived activity logs")
	return archive, nil
}

// createLogZipArchive writes the logs as JSON and CSV plus a metadata file.
func createLogZipArchive(logs []ArchivedLog, fileName string, createdAt time.Time) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	logsFile, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(logsFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"export_date":    createdAt.UTC(),
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, err
	}

	metaFile, err := zw.Create("metadata.json")
	if err != nil {
		return nil, err
	}
	meta := map[string]any{
		"file_name":      fileName,
		"created_at":     createdAt.UTC(),
		"record_count":   len(logs),
		"schema_version": "1.0",
		"description":    "Gradebook activity logs archive",
	}
	if len(logs) > 0 {
		meta["date_range"] = map[string]any{
			"start": logs[0].CreatedAt,
			"end":   logs[len(logs)-1].CreatedAt,
		}
	}
	if err := json.NewEncoder(metaFile).Encode(meta); err != nil {
		return nil, err
	}

	csvFile, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(csvFile)
	_ = w.Write([]string{"ID", "User ID", "Action", "Resource", "Resource ID", "IP Address", "User Agent", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			l.UserID,
			l.Action,
			l.Resource,
			l.ResourceID,
			l.IPAddress,
			l.UserAgent,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// GetArchivedLogs lists archive records, newest first.
func (las *LogArchiveService) GetArchivedLogs(ctx context.Context) ([]models.LogArchive, error) {
	if las.db == nil {
		return []models.LogArchive{}, nil
	}
	var archives []models.LogArchive
	if err := las.db.WithContext(ctx).Order("created_at DESC").Find(&archives).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve archived logs: %w", err)
	}
	return archives, nil
}

// DownloadArchivedLogs streams an archive back from S3.
func (las *LogArchiveService) DownloadArchivedLogs(ctx context.Context, archiveID uint) (io.ReadCloser, string, error) {
	if las.db == nil || las.s3Client == nil {
		return nil, "", errors.New("log archiving is not configured")
	}
	var archive models.LogArchive
	if err := las.db.WithContext(ctx).First(&archive, archiveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", models.NotFoundError("log archive", strconv.FormatUint(uint64(archiveID), 10))
		}
		return nil, "", err
	}
	out, err := las.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(las.bucket),
		Key:    aws.String(archive.S3Key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to download archive from S3: %w", err)
	}
	return out.Body, archive.FileName, nil
}

// RunMaintenance flushes the cache, then archives logs older than daysOld.
func (las *LogArchiveService) RunMaintenance(ctx context.Context, daysOld int) {
	if las.redisClient != nil {
		if _, err := las.FlushCachedLogsToDatabase(ctx); err != nil {
			logrus.WithError(err).Warn("Flushing cached activity logs failed")
		}
	}
	if las.s3Client == nil {
		return
	}
	if _, err := las.ArchiveOldLogs(ctx, daysOld); err != nil {
		logrus.WithError(err).Warn("Archiving activity logs failed")
	}
}
