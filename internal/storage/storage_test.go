package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	bucket, object, err := ParseURI("minio://smart-exam/sheets/1001.png")
	require.NoError(t, err)
	assert.Equal(t, "smart-exam", bucket)
	assert.Equal(t, "sheets/1001.png", object)
}

func TestParseURIRejectsMalformed(t *testing.T) {
	cases := []string{
		"http://smart-exam/sheets/1.png",
		"minio://",
		"minio://bucket-only",
		"minio:///no-bucket.png",
		"",
	}
	for _, uri := range cases {
		_, _, err := ParseURI(uri)
		assert.Error(t, err, "uri=%q", uri)
	}
}

func TestBuildURIRoundTrip(t *testing.T) {
	uri := BuildURI("smart-exam", "papers/2001.txt")
	assert.Equal(t, "minio://smart-exam/papers/2001.txt", uri)

	bucket, object, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "smart-exam", bucket)
	assert.Equal(t, "papers/2001.txt", object)
}

func TestMemoryStoreFetchAfterStore(t *testing.T) {
	s := NewMemoryStore("smart-exam")
	uri, err := s.Store(context.Background(), "sheets/1.png", []byte("scan"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "minio://smart-exam/sheets/1.png", uri)

	data, err := s.Fetch(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("scan"), data)
}

func TestMemoryStoreFetchMissing(t *testing.T) {
	s := NewMemoryStore("smart-exam")
	_, err := s.Fetch(context.Background(), "minio://smart-exam/none.png")
	assert.Error(t, err)
}

// 返回内容是副本，调用方改写不影响存储
func TestMemoryStoreFetchIsolated(t *testing.T) {
	s := NewMemoryStore("smart-exam")
	require.NoError(t, s.Put("minio://smart-exam/a.bin", []byte{1, 2, 3}))

	data, err := s.Fetch(context.Background(), "minio://smart-exam/a.bin")
	require.NoError(t, err)
	data[0] = 9

	again, err := s.Fetch(context.Background(), "minio://smart-exam/a.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, again)
}
