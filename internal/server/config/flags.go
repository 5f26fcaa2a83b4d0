package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/hpcdrive/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-d string     PostgreSQL DSN
//	-m string     identity mode: remote | jwt
//	-i string     identity provider URL
//	-s string     identity token secret (jwt mode)
//	-r string     Redis address for the identity cache
//	-y string     directory service base URL
//	-t duration   directory call timeout (e.g., "10s")
//	-k string     blob backend: s3 | minio
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string     log backend: slog | zap
//
// os.Args is filtered with flagx.FilterArgs first, so flags owned by other
// components do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-m", "-i", "-s", "-r", "-y", "-t", "-k", "-u", "-p", "-b", "-g", "-e", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.IdentityMode, "m", config.IdentityMode, "identity mode (remote|jwt)")
	fs.StringVar(&config.IdentityURL, "i", config.IdentityURL, "identity provider URL")
	fs.StringVar(&config.IdentitySecret, "s", config.IdentitySecret, "identity token secret")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.DirectoryURL, "y", config.DirectoryURL, "directory service URL")
	fs.DurationVar(&config.DirectoryTimeout, "t", config.DirectoryTimeout, "directory call timeout")
	fs.StringVar(&config.BlobBackend, "k", config.BlobBackend, "blob backend (s3|minio)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend (slog|zap)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
