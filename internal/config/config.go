package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string   `yaml:"env" env-default:"local"`
	StoragePath string   `yaml:"storage_path" env-required:"true"`
	RedisAddr   string   `yaml:"redis_addr" env-default:"localhost:6379"`
	Upstream    Upstream `yaml:"upstream"`
	Monitor     Monitor  `yaml:"monitor"`
	Geofence    Geofence `yaml:"geofence"`
	HTTPServer  `yaml:"http_server"`
}

type Upstream struct {
	BaseURL string        `yaml:"base_url" env-required:"true"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type Monitor struct {
	TickInterval time.Duration `yaml:"tick_interval" env-default:"1s"`
}

type Geofence struct {
	Enabled bool    `yaml:"enabled" env-default:"false"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
	RadiusM float64 `yaml:"radius_m" env-default:"150"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return &cfg
}
