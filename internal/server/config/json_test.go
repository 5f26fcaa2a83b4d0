package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("loads from json", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{
			"endpoint_addr_grpc": "drive.example:9000",
			"database_dsn":       "postgres://drive",
			"identity_mode":      "jwt",
			"identity_secret":    "k",
			"directory_url":      "http://dir.example",
			"directory_timeout":  "2s",
			"identity_cache_ttl": 30000000000,
			"blob_backend":       "minio",
			"minio_endpoint":     "minio:9000",
			"minio_use_ssl":      true,
			"semester_count":     6,
		})
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "drive.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://drive", cfg.DatabaseDSN)
		assert.Equal(t, IdentityModeJWT, cfg.IdentityMode)
		assert.Equal(t, "k", cfg.IdentitySecret)
		assert.Equal(t, "http://dir.example", cfg.DirectoryURL)
		assert.Equal(t, 2*time.Second, cfg.DirectoryTimeout)
		assert.Equal(t, 30*time.Second, cfg.IdentityCacheTTL)
		assert.Equal(t, BlobBackendMinio, cfg.BlobBackend)
		assert.Equal(t, "minio:9000", cfg.MinioEndpoint)
		assert.True(t, cfg.MinioUseSSL)
		assert.Equal(t, 6, cfg.SemesterCount)
	})

	t.Run("missing keys keep current values", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{"s3_bucket": "other"})
		os.Args = []string{"testbin", "-c", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "other", cfg.S3Bucket)
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, 10*time.Second, cfg.DirectoryTimeout)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{EndpointAddrGRPC: "defaults:1234"}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(t.TempDir(), "absent.json")}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		os.Args = []string{"testbin", "-c", path}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})
}
