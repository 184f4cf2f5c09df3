// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file, and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the Postgres connection string.
	DatabaseDSN string `env:"DATABASE_DSN"`

	// JWTSecret signs and verifies bearer tokens.
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTLHours is the lifetime of issued bearer tokens.
	TokenTTLHours int `env:"TOKEN_TTL_HOURS" envDefault:"24"`

	// StorageBackend selects the file store: "local", "inline" or "s3".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`

	// StorageDir is the upload directory for the local backend.
	StorageDir string `env:"STORAGE_DIR" envDefault:"uploads"`

	// StorageBaseURL prefixes URLs returned by the local backend.
	StorageBaseURL string `env:"STORAGE_BASE_URL" envDefault:"/uploads"`

	// S3Bucket is the bucket name for the s3 backend.
	S3Bucket string `env:"S3_BUCKET"`

	// S3Prefix is the object key prefix for the s3 backend.
	S3Prefix string `env:"S3_PREFIX" envDefault:"images/"`

	// LogLevel sets the zap log level.
	LogLevel string `env:"LOG_LEVEL" envDefault:"Info"`

	// Config is the path to the JSON config file.
	Config string `env:"CONFIG" json:"-"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.JWTSecret, "s", "", "jwt signing secret")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the optional JSON config file, and
// environment variables (highest precedence) into an Options struct.
func Parse() *Options {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	// Environment variables override flags and file values.
	if err := env.Parse(options); err != nil {
		log.Fatalf("error while parsing environment: %v", err)
	}

	return options
}
