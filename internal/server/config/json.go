package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/hpcdrive/internal/flagx"
	"github.com/dmitrijs2005/hpcdrive/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, which accepts "10s" style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	DatabaseDSN      string         `json:"database_dsn"`
	IdentityMode     string         `json:"identity_mode"`
	IdentityURL      string         `json:"identity_url"`
	IdentitySecret   string         `json:"identity_secret"`
	IdentityTimeout  timex.Duration `json:"identity_timeout"`
	IdentityCacheTTL timex.Duration `json:"identity_cache_ttl"`
	RedisAddr        string         `json:"redis_addr"`
	RedisPassword    string         `json:"redis_password"`
	RedisDB          int            `json:"redis_db"`
	DirectoryURL     string         `json:"directory_url"`
	DirectoryTimeout timex.Duration `json:"directory_timeout"`
	BlobBackend      string         `json:"blob_backend"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	MinioEndpoint    string         `json:"minio_endpoint"`
	MinioUseSSL      bool           `json:"minio_use_ssl"`
	SemesterCount    int            `json:"semester_count"`
	LogBackend       string         `json:"log_backend"`
	LogFormat        string         `json:"log_format"`
}

func toJsonConfig(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC: c.EndpointAddrGRPC,
		DatabaseDSN:      c.DatabaseDSN,
		IdentityMode:     c.IdentityMode,
		IdentityURL:      c.IdentityURL,
		IdentitySecret:   c.IdentitySecret,
		IdentityTimeout:  timex.Duration{Duration: c.IdentityTimeout},
		IdentityCacheTTL: timex.Duration{Duration: c.IdentityCacheTTL},
		RedisAddr:        c.RedisAddr,
		RedisPassword:    c.RedisPassword,
		RedisDB:          c.RedisDB,
		DirectoryURL:     c.DirectoryURL,
		DirectoryTimeout: timex.Duration{Duration: c.DirectoryTimeout},
		BlobBackend:      c.BlobBackend,
		S3RootUser:       c.S3RootUser,
		S3RootPassword:   c.S3RootPassword,
		S3Bucket:         c.S3Bucket,
		S3Region:         c.S3Region,
		S3BaseEndpoint:   c.S3BaseEndpoint,
		MinioEndpoint:    c.MinioEndpoint,
		MinioUseSSL:      c.MinioUseSSL,
		SemesterCount:    c.SemesterCount,
		LogBackend:       c.LogBackend,
		LogFormat:        c.LogFormat,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.DatabaseDSN = j.DatabaseDSN
	c.IdentityMode = j.IdentityMode
	c.IdentityURL = j.IdentityURL
	c.IdentitySecret = j.IdentitySecret
	c.IdentityTimeout = j.IdentityTimeout.Duration
	c.IdentityCacheTTL = j.IdentityCacheTTL.Duration
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.DirectoryURL = j.DirectoryURL
	c.DirectoryTimeout = j.DirectoryTimeout.Duration
	c.BlobBackend = j.BlobBackend
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.MinioEndpoint = j.MinioEndpoint
	c.MinioUseSSL = j.MinioUseSSL
	c.SemesterCount = j.SemesterCount
	c.LogBackend = j.LogBackend
	c.LogFormat = j.LogFormat
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Keys missing from the file keep their current values. If the
// file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJsonConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}
