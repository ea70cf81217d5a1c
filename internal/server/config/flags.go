package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/flagx"
)

// Flags recognised by parseFlags. Other components filter os.Args for their
// own flags, so these must not collide with theirs.
var serverFlags = []string{"-a", "-d", "-s", "-t", "-l", "-k", "-r", "-m", "-u", "-p", "-b", "-g", "-e", "-o", "-n", "-v", "-w"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN, empty for in-memory stores
//	-s string   JWT HMAC secret key
//	-t int      token validity, minutes
//	-l int      failed attempts before lockout
//	-k int      lockout duration, minutes
//	-r string   Redis address for the migration guard
//	-m int      migration guard TTL, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   local backup directory
//	-n string   legacy collection name
//	-v string   log level
//	-w string   comma-separated operator handles
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token validity (in minutes)")
	fs.IntVar(&config.LockoutThreshold, "l", config.LockoutThreshold, "failed attempts before lockout")
	lockoutDuration := fs.Int("k", int(config.LockoutDuration.Minutes()), "lockout duration (in minutes)")

	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	migrationLockTTL := fs.Int("m", int(config.MigrationLockTTL.Minutes()), "migration lock TTL (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.BackupDir, "o", config.BackupDir, "local backup directory")
	fs.StringVar(&config.LegacyCollection, "n", config.LegacyCollection, "legacy collection name")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	operators := fs.String("w", strings.Join(config.Operators, ","), "operator handles (comma-separated)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.LockoutDuration = time.Duration(*lockoutDuration) * time.Minute
	config.MigrationLockTTL = time.Duration(*migrationLockTTL) * time.Minute
	config.Operators = splitList(*operators)
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
