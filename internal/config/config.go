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
	LogLevel   string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string    `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string    `yaml:"socket-port" env:"SOCKET_PORT" env-default:"7777"`
	TLS        TLS       `yaml:"tls"`
	Redis      Redis     `yaml:"redis"`
	EventBus   EventBus  `yaml:"event-bus"`
	WebSocket  WebSocket `yaml:"websocket"`
}

type TLS struct {
	CertFile string `yaml:"cert-file" env:"TLS_CERT_FILE"`
	KeyFile  string `yaml:"key-file" env:"TLS_KEY_FILE"`
}

type Redis struct {
	Enabled     bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host        string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port        string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	SnapshotTTL time.Duration `yaml:"snapshot-ttl" env:"REDIS_SNAPSHOT_TTL" env-default:"1h"`
}

type EventBus struct {
	BufferSize int `yaml:"buffer-size" env:"EVENT_BUS_BUFFER_SIZE" env-default:"100"`
}

type WebSocket struct {
	WriteTimeout time.Duration `yaml:"write-timeout" env:"WS_WRITE_TIMEOUT" env-default:"10s"`
	ReadLimit    int64         `yaml:"read-limit" env:"WS_READ_LIMIT" env-default:"4096"`
	PingPeriod   time.Duration `yaml:"ping-period" env:"WS_PING_PERIOD" env-default:"30s"`
}

// Load - reads the yml file at path; without it only env vars and defaults apply.
func Load(path string) (*Config, error) {
	config := &Config{}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to read config from env: %w", err)
		}

		return config, nil
	}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
