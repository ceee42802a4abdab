package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config — параметры подключения к объектному хранилищу.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// ConfigFromEnv читает конфигурацию из переменных окружения.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Endpoint:  envOr("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: envOr("MINIO_ACCESS_KEY", "cds"),
		SecretKey: envOr("MINIO_SECRET_KEY", "cdsminio"),
		Region:    envOr("MINIO_REGION", "us-east-1"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля конфигурации.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
