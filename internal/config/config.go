package config

import (
	"fmt"
	"os"

	"filestorage-service/internal/assetgw"
	"filestorage-service/internal/blobstore"
	"filestorage-service/internal/service/convertService"
	"filestorage-service/pkg/database/postgres"
	"filestorage-service/pkg/database/redis"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTPPort     string `env:"HTTP_PORT" env-default:"8080"`
	JWTSecret    string `env:"JWT_TOKEN"`
	ShareBaseURL string `env:"SHARE_BASE_URL" env-default:"http://localhost:8080"`
	Postgres     postgres.Config
	Redis        redis.Config
	MinIO        blobstore.Config
	Asset        assetgw.Config
	Convert      convertService.Config
}

// Load reads ./.env when present, otherwise falls back to the process
// environment.
func Load() (*Config, error) {
	var cfg Config
	if _, err := os.Stat(".env"); err == nil {
		if err := cleanenv.ReadConfig(".env", &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return &cfg, nil
}
