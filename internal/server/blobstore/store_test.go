package blobstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageKey(t *testing.T) {
	key := NewStorageKey(42, time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^users/42/2025/03/07/[0-9a-f-]{36}$`), key)
	assert.NotEqual(t, key, NewStorageKey(42, time.Now()))
}

func TestNew_SelectsBackend(t *testing.T) {
	withFakeS3(t, &fakeS3{}, nil)
	withFakeMinio(t, &fakeMinio{exists: true}, nil)

	cfg := &config.Config{}
	cfg.LoadDefaults()

	cfg.BlobBackend = config.BlobBackendS3
	st, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, st)

	cfg.BlobBackend = config.BlobBackendMinio
	st, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MinioStore{}, st)

	cfg.BlobBackend = "ftp"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
