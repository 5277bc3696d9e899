// Package artifact optionally mirrors formatted reports to S3-compatible
// object storage.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ReportStore uploads report files under reports/{digest}/.
type ReportStore struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewReportStore(cfg S3Config) (*ReportStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &ReportStore{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *ReportStore) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// PutReport uploads one rendered report as plain text.
func (s *ReportStore) PutReport(ctx context.Context, digest, name string, content []byte) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	digest = strings.TrimSpace(digest)
	name = strings.TrimSpace(name)
	if digest == "" || name == "" {
		return fmt.Errorf("digest and name are required")
	}
	key := path.Join("reports", digest, name)
	_, err := s.client.PutObject(ctx, s.bucketName, key,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
