package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	LobbyAddr      string        `mapstructure:"LOBBY_ADDR"`
	HTTPAddr       string        `mapstructure:"HTTP_ADDR"`
	DatabaseDriver string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	ArtifactDir    string        `mapstructure:"ARTIFACT_DIR"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	RoomTTL        time.Duration `mapstructure:"ROOM_TTL"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`
	MaxChunkBytes  int           `mapstructure:"MAX_CHUNK_BYTES"`
	MaxChunks      int           `mapstructure:"MAX_CHUNKS"`
	OutboxSize     int           `mapstructure:"OUTBOX_SIZE"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
}

var AppConfig *Config

var defaults = map[string]any{
	"LOBBY_ADDR":      ":12222",
	"HTTP_ADDR":       ":8080",
	"DATABASE_DRIVER": "sqlite",
	"DATABASE_URL":    "lobby.db",
	"ARTIFACT_DIR":    "data/games",
	"JWT_SECRET":      "change-me",
	"TOKEN_TTL":       "24h",
	"REQUEST_TIMEOUT": "5s",
	"WRITE_TIMEOUT":   "10s",
	"ROOM_TTL":        "30m",
	"SWEEP_INTERVAL":  "1m",
	"MAX_CHUNK_BYTES": 64 * 1024,
	"MAX_CHUNKS":      4096,
	"OUTBOX_SIZE":     64,
	"LOG_LEVEL":       "info",
}

// LoadConfig loads the configuration from a .env file and environment variables
// into AppConfig.
func LoadConfig() {
	cfg, err := Load(viper.GetViper(), ".")
	if err != nil {
		logrus.Fatalf("Unable to decode into struct, %v", err)
	}
	AppConfig = cfg
}

// Load reads the .env file found in path (if any), overlays the environment and
// falls back to the built-in defaults for every key.
func Load(v *viper.Viper, path string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logrus.Info(".env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
