package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gradebook_go/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type StorageService struct {
	s3Client s3iface.S3API
	bucket   string
	region   string
}

// NewStorageService creates a new storage service
func NewStorageService() (*StorageService, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AppConfig.AWSRegion),
		Credentials: credentials.NewStaticCredentials(
			config.AppConfig.AWSAccessKeyID,
			config.AppConfig.AWSSecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	return NewStorageServiceWithClient(s3.New(sess), config.AppConfig.S3BucketName, config.AppConfig.AWSRegion), nil
}

// NewStorageServiceWithClient wraps an existing S3 client.
func NewStorageServiceWithClient(client s3iface.S3API, bucket, region string) *StorageService {
	return &StorageService{s3Client: client, bucket: bucket, region: region}
}

// Upload stores body under key and returns the object URL.
func (s *StorageService) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %v", err)
	}
	return s.ObjectURL(key), nil
}

// Download reads the whole object stored under key.
func (s *StorageService) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %v", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Delete removes the object stored under key.
func (s *StorageService) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// ObjectURL is the public URL of key in the bucket.
func (s *StorageService) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// BuildKey places name under folder/YYYY/MM/DD.
func BuildKey(folder string, at time.Time, name string) string {
	return path.Join(
		strings.Trim(folder, "/"),
		fmt.Sprintf("%d/%02d/%02d", at.Year(), at.Month(), at.Day()),
		name,
	)
}

// KeyFromURL extracts the S3 key from a full object URL
func KeyFromURL(url string) string {
	// Example URL: https://bucket.s3.region.amazonaws.com/path/to/file.ext
	parts := strings.Split(url, ".amazonaws.com/")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// ContentTypeFor returns the MIME type for the key's extension
func ContentTypeFor(key string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(key), ".")) {
	case "json":
		return "application/json"
	case "zip":
		return "application/zip"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "csv":
		return "text/csv"
	case "html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
