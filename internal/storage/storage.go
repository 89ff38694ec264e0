package storage

import (
	"context"
	"fmt"
	"strings"
)

// ArtifactStore 制品存储接口，URI格式为 minio://<bucket>/<object>
type ArtifactStore interface {
	// Fetch 按URI拉取制品内容
	Fetch(ctx context.Context, uri string) ([]byte, error)
	// Store 写入制品并返回其URI
	Store(ctx context.Context, object string, data []byte, contentType string) (string, error)
}

const uriScheme = "minio://"

// ParseURI 解析制品URI，返回bucket与object
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", "", fmt.Errorf("不支持的制品URI: %s", uri)
	}
	rest := strings.TrimPrefix(uri, uriScheme)
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("制品URI缺少bucket或object: %s", uri)
	}
	return bucket, object, nil
}

// BuildURI 由bucket与object拼装制品URI
func BuildURI(bucket, object string) string {
	return uriScheme + bucket + "/" + object
}
