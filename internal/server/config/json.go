package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/leafline/internal/flagx"
	"github.com/dmitrijs2005/leafline/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Only the
// keys present in the file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	TokenIssuer                  *string         `json:"token_issuer"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	LogLevel                     *string         `json:"log_level"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	CookieSameSite               *string         `json:"cookie_same_site"`
	CookieDomain                 *string         `json:"cookie_domain"`
	CookiePath                   *string         `json:"cookie_path"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL              *string         `json:"s3_public_base_url"`
}

// parseJson loads the file named by -c/-config in args, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	setString(&config.LogLevel, c.LogLevel)
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	setString(&config.CookieSameSite, c.CookieSameSite)
	setString(&config.CookieDomain, c.CookieDomain)
	setString(&config.CookiePath, c.CookiePath)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
