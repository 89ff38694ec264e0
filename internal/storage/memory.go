package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore 内存制品存储，用于测试
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

// NewMemoryStore 创建内存制品存储
func NewMemoryStore(bucket string) *MemoryStore {
	if bucket == "" {
		bucket = "smart-exam"
	}
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

// Fetch 按URI拉取制品内容
func (s *MemoryStore) Fetch(_ context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("制品不存在: %s", uri)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Store 写入制品并返回其URI
func (s *MemoryStore) Store(_ context.Context, object string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[s.bucket+"/"+object] = buf
	return BuildURI(s.bucket, object), nil
}

// Put 直接按URI写入制品，测试准备数据用
func (s *MemoryStore) Put(uri string, data []byte) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[bucket+"/"+object] = buf
	return nil
}

var _ ArtifactStore = (*MemoryStore)(nil)
