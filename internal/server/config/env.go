package config

import "os"

// Environment variables that override secrets.
const (
	EnvVisionAccessKey = "PHOTOMAGIC_VOLC_ACCESS_KEY"
	EnvVisionSecretKey = "PHOTOMAGIC_VOLC_SECRET_KEY"
	EnvJWTSecret       = "PHOTOMAGIC_JWT_SECRET"
	EnvS3RootPassword  = "PHOTOMAGIC_S3_ROOT_PASSWORD"
)

func parseEnv(config *Config) {
	if v, ok := os.LookupEnv(EnvVisionAccessKey); ok {
		config.VisionAccessKey = v
	}
	if v, ok := os.LookupEnv(EnvVisionSecretKey); ok {
		config.VisionSecretKey = v
	}
	if v, ok := os.LookupEnv(EnvJWTSecret); ok {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv(EnvS3RootPassword); ok {
		config.S3RootPassword = v
	}
}
