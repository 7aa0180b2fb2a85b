package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cloudstorage "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
)

const (
	imageKeyPrefix = "maintenance-images"
	maxImageBytes  = 8 << 20
)

// UploadError wraps failures from the storage backend. The order workflow
// treats every upload error as recoverable.
type UploadError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage upload: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error.
func (e *UploadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

var extensionsByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ImageUploader stores base64 encoded images on a Cloud Storage bucket and
// returns their public URL.
type ImageUploader struct {
	client        *cloudstorage.Client
	bucket        string
	publicBaseURL string
	clock         func() time.Time
	newID         func() string
}

// ImageUploaderDeps bundles construction parameters for an ImageUploader.
type ImageUploaderDeps struct {
	Client        *cloudstorage.Client
	Bucket        string
	PublicBaseURL string
	Clock         func() time.Time
	IDGenerator   func() string
}

// NewImageUploader validates dependencies and constructs an ImageUploader.
func NewImageUploader(deps ImageUploaderDeps) (*ImageUploader, error) {
	if deps.Client == nil {
		return nil, errors.New("image uploader: storage client is required")
	}
	bucket := strings.TrimSpace(deps.Bucket)
	if bucket == "" {
		return nil, errors.New("image uploader: bucket is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	baseURL := strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/")
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com"
	}

	return &ImageUploader{
		client:        deps.Client,
		bucket:        bucket,
		publicBaseURL: baseURL,
		clock:         clock,
		newID:         newID,
	}, nil
}

// UploadBase64 decodes the payload, writes the object, and returns its public URL.
func (u *ImageUploader) UploadBase64(ctx context.Context, payload string, requestID string) (string, error) {
	if u == nil || u.client == nil {
		return "", &UploadError{Op: "init", Err: errors.New("uploader not initialised")}
	}

	data, contentType, err := decodeImagePayload(payload)
	if err != nil {
		return "", &UploadError{Op: "decode", Err: err}
	}

	key := u.objectKey(requestID, contentType)
	writer := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", &UploadError{Op: "write", Err: err}
	}
	if err := writer.Close(); err != nil {
		return "", &UploadError{Op: "close", Err: err}
	}

	return fmt.Sprintf("%s/%s/%s", u.publicBaseURL, u.bucket, key), nil
}

func (u *ImageUploader) objectKey(requestID string, contentType string) string {
	ext := extensionsByContentType[contentType]
	if ext == "" {
		ext = "bin"
	}
	scope := sanitizeKeySegment(requestID)
	if scope == "" {
		scope = "unscoped"
	}
	ts := u.clock().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s/%s/%s_%s.%s", imageKeyPrefix, scope, ts, u.newID(), ext)
}

// decodeImagePayload accepts raw base64 or a data: URI and returns the decoded
// bytes together with the sniffed content type.
func decodeImagePayload(payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, "", errors.New("empty payload")
	}
	if strings.HasPrefix(trimmed, "data:") {
		idx := strings.Index(trimmed, ",")
		if idx < 0 {
			return nil, "", errors.New("malformed data uri")
		}
		trimmed = trimmed[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		if data, err = base64.URLEncoding.DecodeString(trimmed); err != nil {
			return nil, "", fmt.Errorf("decode base64: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("unsupported content type %s", contentType)
	}
	return data, contentType, nil
}

func sanitizeKeySegment(value string) string {
	value = strings.TrimSpace(value)
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			cleaned = append(cleaned, r)
		case r == '-' || r == '_' || r == '.':
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) > 80 {
		cleaned = cleaned[:80]
	}
	return string(cleaned)
}
