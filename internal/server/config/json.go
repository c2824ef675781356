package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/openheritage/memoryvault/internal/flagx"
	"github.com/openheritage/memoryvault/internal/timex"
)

// JsonConfig is an intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which parses both string
// values such as "15m" and integer nanoseconds. Empty fields leave the
// current Config value untouched.
type JsonConfig struct {
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	S3AccessKey                 *string         `json:"s3_access_key"`
	S3SecretKey                 *string         `json:"s3_secret_key"`
	S3Bucket                    *string         `json:"s3_bucket"`
	S3Region                    *string         `json:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint"`
	LocatorValidityDuration     *timex.Duration `json:"locator_validity_duration"`
	MaxUploadSizeBytes          *int64          `json:"max_upload_size_bytes"`
	UpstreamRetryAttempts       *int            `json:"upstream_retry_attempts"`
	StartupWaitTimeout          *timex.Duration `json:"startup_wait_timeout"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags. When no flag is given, nothing is loaded. An unreadable or
// invalid file panics: a deployment pointing at a broken config file should
// not come up.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.LocatorValidityDuration, c.LocatorValidityDuration)
	if c.MaxUploadSizeBytes != nil {
		config.MaxUploadSizeBytes = *c.MaxUploadSizeBytes
	}
	if c.UpstreamRetryAttempts != nil {
		config.UpstreamRetryAttempts = *c.UpstreamRetryAttempts
	}
	setDuration(&config.StartupWaitTimeout, c.StartupWaitTimeout)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
