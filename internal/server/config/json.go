package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/photomagic/internal/flagx"
	"github.com/dmitrijs2005/photomagic/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Pointer fields distinguish
// "absent" from zero so a partial file only overrides what it names.
// Durations accept "1s" strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP   *string         `json:"endpoint_addr_http"`
	DatabaseDSN        *string         `json:"database_dsn"`
	Store              *string         `json:"store"`
	SecretKey          *string         `json:"secret_key"`
	S3RootUser         *string         `json:"s3_root_user"`
	S3RootPassword     *string         `json:"s3_root_password"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	PresignExpiry      *timex.Duration `json:"presign_expiry"`
	VisionEndpoint     *string         `json:"vision_endpoint"`
	VisionRegion       *string         `json:"vision_region"`
	VisionService      *string         `json:"vision_service"`
	VisionAccessKey    *string         `json:"vision_access_key"`
	VisionSecretKey    *string         `json:"vision_secret_key"`
	VisionTimeout      *timex.Duration `json:"vision_timeout"`
	VisionCheckOnStart *bool           `json:"vision_check_on_start"`
	Workers            *int            `json:"workers"`
	Dispatch           *string         `json:"dispatch"`
	KafkaBrokers       []string        `json:"kafka_brokers"`
	KafkaTopic         *string         `json:"kafka_topic"`
	KafkaGroup         *string         `json:"kafka_group"`
	RedisAddr          *string         `json:"redis_addr"`
	StatusCacheTTL     *timex.Duration `json:"status_cache_ttl"`
	LogFormat          *string         `json:"log_format"`
	ShutdownTimeout    *timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c/-config (if any) over config.
// An unreadable file or invalid JSON panics: the process cannot start with a
// configuration it was explicitly told to use.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Store, c.Store)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.VisionEndpoint, c.VisionEndpoint)
	setString(&config.VisionRegion, c.VisionRegion)
	setString(&config.VisionService, c.VisionService)
	setString(&config.VisionAccessKey, c.VisionAccessKey)
	setString(&config.VisionSecretKey, c.VisionSecretKey)
	setString(&config.Dispatch, c.Dispatch)
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.KafkaGroup, c.KafkaGroup)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogFormat, c.LogFormat)

	if c.PresignExpiry != nil {
		config.PresignExpiry = c.PresignExpiry.Duration
	}
	if c.VisionTimeout != nil {
		config.VisionTimeout = c.VisionTimeout.Duration
	}
	if c.StatusCacheTTL != nil {
		config.StatusCacheTTL = c.StatusCacheTTL.Duration
	}
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.VisionCheckOnStart != nil {
		config.VisionCheckOnStart = *c.VisionCheckOnStart
	}
	if c.Workers != nil {
		config.Workers = *c.Workers
	}
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
