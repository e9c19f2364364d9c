package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore provides access to object storage for archived media.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// MinioStore implements ObjectStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// Put uploads an object.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PresignGet generates a pre-signed GET URL.
func (m *MinioStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return url.String(), nil
}

// Delete removes an object.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Archiver copies completed generated media from the agent's temporary URLs
// into our own bucket so assets outlive the agent's retention window.
type Archiver struct {
	store      ObjectStore
	httpClient *http.Client
	maxSize    int64
}

// NewArchiver creates an archiver. maxSize bounds a single download; zero
// means 512 MiB.
func NewArchiver(store ObjectStore, httpClient *http.Client, maxSize int64) (*Archiver, error) {
	if store == nil {
		return nil, errors.New("archiver requires an object store")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if maxSize <= 0 {
		maxSize = 512 << 20
	}
	return &Archiver{store: store, httpClient: httpClient, maxSize: maxSize}, nil
}

// ArchiveFromURL downloads the media at srcURL and stores it under key.
// Callers keep the key and presign on read; a presigned URL taken at archive
// time would go stale once its signature expires.
func (a *Archiver) ArchiveFromURL(ctx context.Context, srcURL, key string) error {
	srcURL = strings.TrimSpace(srcURL)
	if srcURL == "" {
		return errors.New("source url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch media: status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// Size -1 makes the client stream with multipart upload.
	size := resp.ContentLength
	if size > a.maxSize {
		return fmt.Errorf("media too large: %d bytes", size)
	}
	body := io.Reader(resp.Body)
	if size < 0 {
		body = io.LimitReader(resp.Body, a.maxSize)
	}
	if err := a.store.Put(ctx, key, body, size, contentType); err != nil {
		return err
	}
	return nil
}

// PresignGet signs a fresh GET URL for an archived object.
func (a *Archiver) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return a.store.PresignGet(ctx, key, expiry)
}
