package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leafline/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string      HTTP bind address (e.g. ":8080")
//	-grpc string   gRPC bind address (e.g. ":50051")
//	-d string      PostgreSQL DSN
//	-s string      token signing secret
//	-t int         access token validity, minutes
//	-r int         refresh token validity, minutes
//	-l string      log level
//	-u string      S3 user
//	-p string      S3 password
//	-b string      S3 bucket
//	-region string S3 region
//	-e string      S3 base endpoint
//
// Durations are taken as whole minutes.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-grpc", "-d", "-s", "-t", "-r", "-l", "-u", "-p", "-b", "-region", "-e"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
	return nil
}
