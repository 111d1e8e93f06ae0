package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/magiconair/properties"
)

// Config holds all process-level configuration for the application.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Store  StoreConfig
	Worker WorkerConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// StoreConfig locates the optional store properties file. The file
// itself, not the environment, decides whether persistence runs.
type StoreConfig struct {
	PropertiesFile string `envconfig:"STORE_PROPERTIES" default:"db.properties"`
}

// WorkerConfig sizes the background execution pool that runs
// fire-and-forget bulk writes.
type WorkerConfig struct {
	Size       int `envconfig:"WORKER_POOL_SIZE" default:"4"`
	QueueDepth int `envconfig:"WORKER_QUEUE_DEPTH" default:"256"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StoreProperties is the parsed contents of the store properties file.
type StoreProperties struct {
	URL            string
	User           string
	Password       string
	ConnectTimeout time.Duration
}

// Recognized keys of the store properties file.
const (
	propURL           = "db.url"
	propUser          = "db.user"
	propPassword      = "db.password"
	propTimeoutMillis = "connection.timeout.millis"
)

const defaultConnectTimeout = 30 * time.Second

// LoadStoreProperties reads the store properties file at path.
// A missing file or a file with zero keys returns nil, nil; callers
// treat a nil result as "run with persistence disabled", which is a
// supported mode and never an error.
func LoadStoreProperties(path string) (*StoreProperties, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load store properties %s: %w", path, err)
	}
	if p.Len() == 0 {
		return nil, nil
	}

	timeout := defaultConnectTimeout
	if millis := p.GetInt64(propTimeoutMillis, 0); millis > 0 {
		timeout = time.Duration(millis) * time.Millisecond
	}

	return &StoreProperties{
		URL:            p.GetString(propURL, ""),
		User:           p.GetString(propUser, ""),
		Password:       p.GetString(propPassword, ""),
		ConnectTimeout: timeout,
	}, nil
}
