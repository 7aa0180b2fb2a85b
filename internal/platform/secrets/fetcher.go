package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	secretScheme         = "secret://"
	defaultVersionAlias  = "latest"
	defaultFallbackFile  = ".secrets.local"
	fallbackCommentToken = "#"
)

// ErrSecretNotFound indicates that neither Secret Manager nor the local
// fallback file could resolve the reference.
var ErrSecretNotFound = errors.New("secrets: not found")

// Fetcher resolves secret:// references through Google Secret Manager with an
// optional local fallback file for development environments.
type Fetcher struct {
	client         *secretmanager.Client
	projectID      string
	fallbackPath   string
	fallbackValues map[string]string
	logger         *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// Option customises Fetcher construction.
type Option func(*fetcherOptions)

type fetcherOptions struct {
	projectID    string
	fallbackPath string
	logger       *zap.Logger
	clientOpts   []option.ClientOption
	disableAPI   bool
}

// WithProject sets the Secret Manager project used for unqualified references.
func WithProject(projectID string) Option {
	return func(o *fetcherOptions) {
		o.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile points the fetcher at a local key=value file consulted when
// Secret Manager is unavailable or returns not found.
func WithFallbackFile(path string) Option {
	return func(o *fetcherOptions) {
		o.fallbackPath = strings.TrimSpace(path)
	}
}

// WithLogger attaches a logger for resolution diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *fetcherOptions) {
		o.logger = logger
	}
}

// WithClientOptions forwards options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *fetcherOptions) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithoutAPI disables the Secret Manager client entirely; only the fallback
// file is consulted. Intended for local development and tests.
func WithoutAPI() Option {
	return func(o *fetcherOptions) {
		o.disableAPI = true
	}
}

// NewFetcher constructs a Fetcher. The Secret Manager client is created
// eagerly so credential problems surface at startup.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	options := fetcherOptions{
		fallbackPath: defaultFallbackFile,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	fetcher := &Fetcher{
		projectID:    options.projectID,
		fallbackPath: options.fallbackPath,
		logger:       options.logger,
		cache:        make(map[string]string),
	}
	fetcher.fallbackValues = loadFallbackFile(options.fallbackPath, options.logger)

	if !options.disableAPI {
		client, err := secretmanager.NewClient(ctx, options.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create secret manager client: %w", err)
		}
		fetcher.client = client
	}

	return fetcher, nil
}

// Resolve returns the secret value for a secret:// reference. Values without
// the scheme are returned unchanged so configuration entries may be literal.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	if f == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, secretScheme) {
		return ref, nil
	}

	f.mu.RLock()
	cached, ok := f.cache[ref]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	name, version, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	value, err := f.access(ctx, name, version)
	if err != nil {
		if fallback, ok := f.fallbackValues[name]; ok {
			f.logger.Warn("secret resolved from fallback file", zap.String("secret", name))
			value = fallback
		} else {
			return "", err
		}
	}

	f.mu.Lock()
	f.cache[ref] = value
	f.mu.Unlock()
	return value, nil
}

// Close releases the underlying client.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

func (f *Fetcher) access(ctx context.Context, name string, version string) (string, error) {
	if f.client == nil {
		return "", fmt.Errorf("%w: %s (secret manager disabled)", ErrSecretNotFound, name)
	}
	if f.projectID == "" {
		return "", fmt.Errorf("secrets: project id not configured for %s", name)
	}

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resource,
	})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("%w: %s (empty payload)", ErrSecretNotFound, name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func parseReference(ref string) (name string, version string, err error) {
	rest := strings.TrimPrefix(ref, secretScheme)
	version = defaultVersionAlias
	if idx := strings.Index(rest, "?"); idx >= 0 {
		query := rest[idx+1:]
		rest = rest[:idx]
		values, parseErr := url.ParseQuery(query)
		if parseErr != nil {
			return "", "", fmt.Errorf("secrets: malformed reference %q: %w", ref, parseErr)
		}
		if v := strings.TrimSpace(values.Get("version")); v != "" {
			version = v
		}
	}
	name = strings.Trim(rest, "/")
	if name == "" {
		return "", "", fmt.Errorf("secrets: malformed reference %q: missing name", ref)
	}
	return name, version, nil
}

func loadFallbackFile(path string, logger *zap.Logger) map[string]string {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values
	}
	file, err := os.Open(path)
	if err != nil {
		return values
	}
	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, fallbackCommentToken) {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("secrets fallback file read error", zap.String("path", path), zap.Error(err))
	}
	return values
}
