package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultDatabaseMaxConns    = 16
	defaultDatabaseMinConns    = 2
	defaultConnLifetime        = 30 * time.Minute
	defaultConnIdleTime        = 5 * time.Minute
	defaultTokenTTL            = 30 * time.Minute
	defaultSecurityEnvironment = "local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Events   EventsConfig
	Security SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig stores PostgreSQL pool parameters.
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AuthConfig holds token issuing parameters. JWTSecret accepts a secret://
// reference resolved at load time.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// StorageConfig lists bucket parameters for image uploads.
type StorageConfig struct {
	ImagesBucket  string
	PublicBaseURL string
}

// EventsConfig controls the order event publisher. Publishing is disabled
// when ProjectID or Topic is empty.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// SecurityConfig groups deployment environment settings.
type SecurityConfig struct {
	Environment     string
	SecretProjectID string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for %s: %v", e.Field, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the dotenv file path consulted during loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies explicit environment values, primarily for tests.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv prevents fallback lookups against the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver registers the resolver used for secret:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// EnvironmentValues merges the dotenv file (when present) with the process
// environment so callers can bootstrap components before Load runs.
func EnvironmentValues() (map[string]string, error) {
	values, err := readDotEnv(defaultEnvFile)
	if err != nil {
		return nil, err
	}
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values, nil
}

// Load reads configuration from the environment, resolves secret references,
// applies defaults, and validates required fields.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	fileValues, err := readDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) string {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return strings.TrimSpace(value)
			}
		}
		if value, ok := fileValues[key]; ok {
			return strings.TrimSpace(value)
		}
		if options.useSystemEnv {
			return strings.TrimSpace(os.Getenv(key))
		}
		return ""
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup("API_SERVER_PORT"), defaultPort),
			ReadTimeout:  durationWithDefault(lookup("API_SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup("API_SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup("API_SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			URL:             lookup("API_DATABASE_URL"),
			MaxConns:        int32WithDefault(lookup("API_DATABASE_MAX_CONNS"), defaultDatabaseMaxConns),
			MinConns:        int32WithDefault(lookup("API_DATABASE_MIN_CONNS"), defaultDatabaseMinConns),
			MaxConnLifetime: durationWithDefault(lookup("API_DATABASE_CONN_LIFETIME"), defaultConnLifetime),
			MaxConnIdleTime: durationWithDefault(lookup("API_DATABASE_CONN_IDLE_TIME"), defaultConnIdleTime),
		},
		Auth: AuthConfig{
			JWTSecret: lookup("API_AUTH_JWT_SECRET"),
			TokenTTL:  durationWithDefault(lookup("API_AUTH_TOKEN_TTL"), defaultTokenTTL),
		},
		Storage: StorageConfig{
			ImagesBucket:  lookup("API_STORAGE_IMAGES_BUCKET"),
			PublicBaseURL: lookup("API_STORAGE_PUBLIC_BASE_URL"),
		},
		Events: EventsConfig{
			ProjectID: lookup("API_EVENTS_PROJECT_ID"),
			Topic:     lookup("API_EVENTS_TOPIC"),
		},
		Security: SecurityConfig{
			Environment:     stringWithDefault(lookup("API_SECURITY_ENVIRONMENT"), defaultSecurityEnvironment),
			SecretProjectID: lookup("API_SECRET_PROJECT_ID"),
		},
	}

	if err := resolveSecrets(ctx, &cfg, options.secret); err != nil {
		return Config{}, err
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) error {
	fields := []struct {
		name  string
		value *string
	}{
		{name: "Auth.JWTSecret", value: &cfg.Auth.JWTSecret},
		{name: "Database.URL", value: &cfg.Database.URL},
	}

	for _, field := range fields {
		raw := strings.TrimSpace(*field.value)
		if !strings.HasPrefix(raw, "secret://") {
			continue
		}
		if resolver == nil {
			return &SecretError{Field: field.name, Err: errors.New("secret resolver not configured")}
		}
		resolved, err := resolver.ResolveSecret(ctx, raw)
		if err != nil {
			return &SecretError{Field: field.name, Err: err}
		}
		*field.value = strings.TrimSpace(resolved)
	}
	return nil
}

func validate(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.Database.URL) == "" {
		missing = append(missing, "Database.URL")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		missing = append(missing, "Auth.JWTSecret")
	}
	if cfg.Auth.TokenTTL <= 0 {
		missing = append(missing, "Auth.TokenTTL")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("open env file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func durationWithDefault(value string, fallback time.Duration) time.Duration {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func int32WithDefault(value string, fallback int32) int32 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return int32(parsed)
}
