package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/SzSimonSun/smart-exam-mvp/internal/config"
)

// MinioStore 基于MinIO的制品存储
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore 连接MinIO并确保默认bucket存在
func NewMinioStore(ctx context.Context, cfg *config.MinIOConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MinIO失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("检查bucket失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建bucket失败: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Fetch 按URI拉取制品内容
func (s *MinioStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("拉取制品 %s 失败: %w", uri, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取制品 %s 失败: %w", uri, err)
	}
	return data, nil
}

// Store 写入制品到默认bucket并返回其URI
func (s *MinioStore) Store(ctx context.Context, object string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("写入制品 %s 失败: %w", object, err)
	}
	return BuildURI(s.bucket, object), nil
}

var _ ArtifactStore = (*MinioStore)(nil)
