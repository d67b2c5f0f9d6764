package internal

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	StoreBadger = "badger"
	StoreMemory = "memory"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080"`
	GrpcPort          int           `env:"GRPC_PORT,default=9090"`
	ChatPath          string        `env:"CHAT_PATH,default=/api/chat/socket"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS,default=*"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	StoreDriver       string        `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,default=./data/chat"`
	HistoryLimit      *int          `env:"HISTORY_LIMIT"`
	RoutingMode       string        `env:"ROUTING_MODE,default=broadcast"`
	SendTimeout       time.Duration `env:"SEND_TIMEOUT,default=5s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongWait          time.Duration `env:"PONG_WAIT,default=60s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=15s"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
}

// LoadConfig reads an optional .env file, then the environment.
// Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if _, err := domain.ParseRoutingMode(c.RoutingMode); err != nil {
		return err
	}
	if c.StoreDriver != StoreBadger && c.StoreDriver != StoreMemory {
		return fmt.Errorf("%w: %q", errors.ErrInvalidStore, c.StoreDriver)
	}
	if c.StoreDriver == StoreBadger && c.BadgerFilepath == "" {
		return fmt.Errorf("BADGER_FILEPATH is required with STORE_DRIVER=%s", StoreBadger)
	}
	if !strings.HasPrefix(c.ChatPath, "/") {
		return fmt.Errorf("CHAT_PATH must start with '/', got %q", c.ChatPath)
	}
	for name, d := range map[string]time.Duration{
		"SEND_TIMEOUT":       c.SendTimeout,
		"WRITE_TIMEOUT":      c.WriteTimeout,
		"PONG_WAIT":          c.PongWait,
		"HEARTBEAT_INTERVAL": c.HeartbeatInterval,
		"RESTART_INTERVAL":   c.RestartInterval,
		"METRIC_INTERVAL":    c.MetricInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", errors.ErrInvalidConfig, name, d)
		}
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: MAX_MESSAGE_SIZE must be positive, got %d", errors.ErrInvalidConfig, c.MaxMessageSize)
	}
	if c.HeartbeatInterval >= c.PongWait {
		return fmt.Errorf("HEARTBEAT_INTERVAL (%s) must be shorter than PONG_WAIT (%s)", c.HeartbeatInterval, c.PongWait)
	}
	return nil
}

// Routing returns the parsed ROUTING_MODE. Validate has already rejected unknown values.
func (c Config) Routing() domain.RoutingMode {
	mode, _ := domain.ParseRoutingMode(c.RoutingMode)
	return mode
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GrpcAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GrpcPort)
}
