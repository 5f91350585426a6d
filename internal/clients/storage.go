package clients

import (
	"fmt"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"

	"github.com/quizbuzz/exam-service/internal/config"
)

// StorageClient hands out presigned URLs against the configured bucket.
// Uploads go straight from the browser to object storage; the service only
// signs the slots.
type StorageClient struct {
	bucket *oss.Bucket
	expiry int64
}

// NewStorageClient connects to the OSS bucket
func NewStorageClient(cfg config.OSSConfig) (*StorageClient, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open oss bucket: %w", err)
	}

	return &StorageClient{
		bucket: bucket,
		expiry: int64(cfg.UploadURLExpiry.Seconds()),
	}, nil
}

// BuildObjectKey places an upload under its exam or class prefix with a
// random component so names never collide
func BuildObjectKey(examID, classID *string, fileName string) string {
	safeName := sanitizeFileName(fileName)
	unique := fmt.Sprintf("%s-%s", uuid.New().String(), safeName)

	switch {
	case examID != nil:
		return path.Join("exams", *examID, "materials", unique)
	case classID != nil:
		return path.Join("classes", *classID, "materials", unique)
	default:
		return path.Join("materials", unique)
	}
}

// ExpirySeconds reports how long signed URLs stay valid
func (s *StorageClient) ExpirySeconds() int64 {
	return s.expiry
}

// SignUploadURL presigns a PUT for one object key
func (s *StorageClient) SignUploadURL(objectKey string) (string, error) {
	url, err := s.bucket.SignURL(objectKey, oss.HTTPPut, s.expiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload url: %w", err)
	}
	return url, nil
}

// SignDownloadURL presigns a GET for one object key
func (s *StorageClient) SignDownloadURL(objectKey string) (string, error) {
	url, err := s.bucket.SignURL(objectKey, oss.HTTPGet, s.expiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign download url: %w", err)
	}
	return url, nil
}

// DeleteObject removes one stored object
func (s *StorageClient) DeleteObject(objectKey string) error {
	if err := s.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func sanitizeFileName(name string) string {
	name = path.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
