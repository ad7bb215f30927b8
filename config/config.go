// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/media"
	"github.com/jacentio/members/store"
)

// Store drivers.
const (
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

type (
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

		Server HTTPProperties   `envPrefix:"HTTP_"`
		Auth   AuthProperties   `envPrefix:"AUTH_"`
		Store  StoreProperties  `envPrefix:"STORE_"`
		Media  MediaProperties  `envPrefix:"MEDIA_"`
		Events EventsProperties `envPrefix:"EVENTS_"`
	}

	HTTPProperties struct {
		Host            string        `env:"HOST" envDefault:"0.0.0.0"`
		Port            int           `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
		AllowOrigins    []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
		MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	}

	AuthProperties struct {
		JWTSecret string `env:"JWT_SECRET"`
	}

	StoreProperties struct {
		Driver          string `env:"DRIVER" envDefault:"dynamodb"`
		TablePrefix     string `env:"TABLE_PREFIX" envDefault:"members_"`
		UniqueTable     string `env:"UNIQUE_TABLE" envDefault:"unique_constraints"`
		Region          string `env:"REGION" envDefault:"us-east-1"`
		Endpoint        string `env:"ENDPOINT"`
		AutoCreate      bool   `env:"AUTO_CREATE" envDefault:"false"`
		MaxBatchRetries int    `env:"MAX_BATCH_RETRIES" envDefault:"5"`
	}

	MediaProperties struct {
		Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
		Bucket    string `env:"BUCKET" envDefault:"members"`
		PublicURL string `env:"PUBLIC_URL"`
		Root      string `env:"ROOT" envDefault:"members-api"`
		Folder    string `env:"FOLDER" envDefault:"users_profiles"`
		ImageSize int    `env:"IMAGE_SIZE" envDefault:"400"`
		MaxPixels int    `env:"MAX_PIXELS" envDefault:"40000000"`
	}

	EventsProperties struct {
		URL      string `env:"AMQP_URL"`
		Exchange string `env:"EXCHANGE" envDefault:"members.events"`
	}
)

// Load parses the environment and checks the result.
func Load() (*Properties, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (*Properties, error) {
	p := &Properties{}
	if err := env.Parse(p, opts); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate reports settings the service cannot start with.
func (p *Properties) Validate() error {
	var errs []error
	switch p.Store.Driver {
	case DriverDynamoDB, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverDynamoDB, DriverMemory, p.Store.Driver))
	}
	if p.Server.Port <= 0 || p.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT out of range: %d", p.Server.Port))
	}
	if p.Media.ImageSize <= 0 {
		errs = append(errs, fmt.Errorf("MEDIA_IMAGE_SIZE must be positive, got %d", p.Media.ImageSize))
	}
	if p.Media.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("MEDIA_MAX_PIXELS must be positive, got %d", p.Media.MaxPixels))
	}
	if p.Media.Root == "" || p.Media.Folder == "" {
		errs = append(errs, errors.New("MEDIA_ROOT and MEDIA_FOLDER must be set"))
	}
	return errors.Join(errs...)
}

// Level maps LOG_LEVEL to a slog level. Unknown names mean info.
func (p *Properties) Level() slog.Level {
	switch strings.ToUpper(p.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// RequireAuth reports whether tokens can be verified. Only the HTTP server
// needs a secret.
func (p *Properties) RequireAuth() error {
	if p.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (p *Properties) Addr() string {
	return fmt.Sprintf("%s:%d", p.Server.Host, p.Server.Port)
}

// StoreConfig returns the DynamoDB store settings.
func (p *Properties) StoreConfig() store.Config {
	return store.Config{
		TablePrefix:     p.Store.TablePrefix,
		UniqueTable:     p.Store.UniqueTable,
		MaxBatchRetries: p.Store.MaxBatchRetries,
	}
}

// MinioConfig returns the asset store settings.
func (p *Properties) MinioConfig() media.MinioConfig {
	return media.MinioConfig{
		Endpoint:        p.Media.Endpoint,
		AccessKeyID:     p.Media.AccessKey,
		SecretAccessKey: p.Media.SecretKey,
		UseSSL:          p.Media.UseSSL,
		Bucket:          p.Media.Bucket,
		PublicURL:       p.Media.PublicURL,
		Root:            p.Media.Root,
	}
}

// AccountConfig returns the account service settings.
func (p *Properties) AccountConfig() account.Config {
	cfg := account.DefaultConfig()
	cfg.Namespace = media.Namespace{Root: p.Media.Root, Folder: p.Media.Folder}
	cfg.ImageSize = p.Media.ImageSize
	cfg.MaxImagePixels = p.Media.MaxPixels
	return cfg
}
