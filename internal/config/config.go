package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel        string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort        string    `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort      string    `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	HTTPAllowOrigin string    `yaml:"http-allow-origin" env:"HTTP_ALLOW_ORIGIN" env-default:"*"`
	Redis           Redis     `yaml:"redis" env-prefix:"REDIS_"`
	Session         Session   `yaml:"session" env-prefix:"SESSION_"`
	Websocket       Websocket `yaml:"websocket" env-prefix:"WEBSOCKET_"`
}

type Redis struct {
	// Enabled turns on the snapshot mirror and cross-replica code reservation.
	// Zero values are replaced by env-default, so this one has none.
	Enabled     bool          `yaml:"enabled" env:"ENABLED"`
	Host        string        `yaml:"host" env:"HOST" env-default:"localhost"`
	Port        string        `yaml:"port" env:"PORT" env-default:"6379"`
	SnapshotTTL time.Duration `yaml:"snapshot-ttl" env:"SNAPSHOT_TTL" env-default:"24h"`
}

type Session struct {
	CodeLength      int           `yaml:"code-length" env:"CODE_LENGTH" env-default:"5"`
	MaxCodeAttempts int           `yaml:"max-code-attempts" env:"MAX_CODE_ATTEMPTS" env-default:"32"`
	OpponentDelay   time.Duration `yaml:"opponent-delay" env:"OPPONENT_DELAY" env-default:"750ms"`
	IdleTTL         time.Duration `yaml:"idle-ttl" env:"IDLE_TTL" env-default:"1h"`
	SweepInterval   time.Duration `yaml:"sweep-interval" env:"SWEEP_INTERVAL" env-default:"1m"`
	ReconnectGrace  time.Duration `yaml:"reconnect-grace" env:"RECONNECT_GRACE" env-default:"30s"`
}

type Websocket struct {
	OriginPatterns []string `yaml:"origin-patterns" env:"ORIGIN_PATTERNS" env-default:"*"`
}

// MustLoad - loads config.yml at path, or only the environment when there is no such file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err = cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("unable to load config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to load config from env: %w", err)
		}
	default:
		return nil, fmt.Errorf("unable to stat config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
