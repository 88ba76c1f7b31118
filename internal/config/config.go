package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config agrupa la configuración necesaria para correr la aplicación.
// Todo viene del entorno; .env es solo una comodidad para desarrollo local.
type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	UploadDir   string `env:"UPLOAD_DIR" env-default:"uploads"`
	APIToken    string `env:"API_TOKEN"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"console"`
}

// Load lee .env (si existe) y variables de entorno, y valida lo mínimo indispensable.
func Load() (Config, error) {
	// .env es opcional: en producción las variables vienen del entorno.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}

	// Normalizamos por si alguien manda ":8080"
	cfg.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Port), ":")
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing required env var: DATABASE_URL")
	}

	cfg.UploadDir = strings.TrimSpace(cfg.UploadDir)
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}

	return cfg, nil
}
