package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config parámetros de configuración del servidor
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Data struct {
		Dir     string `yaml:"dir"`      // directorio local con manifest.json y <code>/exam.json
		BaseURL string `yaml:"base_url"` // si está definido, los bancos se descargan por HTTP
	} `yaml:"data"`
	Session struct {
		StaleAfterMinutes int `yaml:"stale_after_minutes"` // sesiones abiertas más viejas se autocierran
	} `yaml:"session"`
}

// StaleAfter duración tras la cual una sesión abierta se considera abandonada
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Session.StaleAfterMinutes) * time.Minute
}

// LoadConfig carga la configuración desde un archivo YAML (si existe) y
// aplica las variables de entorno por encima. Sin archivo ni variables se
// usan valores por defecto razonables para desarrollo local.
func LoadConfig(filename string) (*Config, error) {
	cfg := defaults()

	if f, err := os.Open(filename); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("error parseando %s: %v", filename, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)

	if cfg.Session.StaleAfterMinutes <= 0 {
		cfg.Session.StaleAfterMinutes = 60
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Data.Dir = "data"
	cfg.Session.StaleAfterMinutes = 60
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("LISTEN_ADDR", cfg.Server.Addr)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Data.Dir = getEnv("DATA_DIR", cfg.Data.Dir)
	cfg.Data.BaseURL = getEnv("DATA_BASE_URL", cfg.Data.BaseURL)

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = db
		}
	}
	if staleStr := os.Getenv("SESSION_STALE_MINUTES"); staleStr != "" {
		if n, err := strconv.Atoi(staleStr); err == nil && n > 0 {
			cfg.Session.StaleAfterMinutes = n
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
