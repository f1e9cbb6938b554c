// Package config holds client configuration for the RCSB web service
// endpoints, the transport retry policy, and request identification.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/williamgilpin/pypdb/errors"
)

// Default endpoint roots for the public RCSB services.
const (
	DefaultSearchURL   = "https://search.rcsb.org/rcsbsearch/v2/query"
	DefaultGraphQLURL  = "https://data.rcsb.org/graphql"
	DefaultFastaURL    = "https://www.rcsb.org/fasta/entry/"
	DefaultDownloadURL = "https://files.rcsb.org/download/"
	DefaultRESTDataURL = "https://data.rcsb.org/rest/v1/core/"
)

// DefaultUserAgent identifies this client to the RCSB servers so traffic
// can be attributed. Callers may extend it but should not erase it.
const DefaultUserAgent = "pypdb-go/2.0"

// EndpointConfig groups the RCSB service URLs. Overriding these is mainly
// useful for tests and mirrors.
type EndpointConfig struct {
	Search   string `yaml:"search"`
	GraphQL  string `yaml:"graphql"`
	Fasta    string `yaml:"fasta"`
	Download string `yaml:"download"`
	RESTData string `yaml:"rest_data"`
}

// Duration wraps time.Duration so YAML configs can use "500ms"-style
// strings; bare integers are taken as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\" or an integer nanosecond count")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RetryConfig controls the transport retry state machine.
type RetryConfig struct {
	// MaxRetries is the number of retries beyond the first attempt.
	MaxRetries int `yaml:"max_retries"`
	// BaseSleep is the backoff unit for rate-limited (HTTP 429) responses.
	// The n-th retry after a 429 sleeps n*BaseSleep.
	BaseSleep Duration `yaml:"base_sleep"`
}

// RateLimitConfig bounds outbound request rate ahead of the server's own
// throttling. Zero RequestsPerSecond disables client-side limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Config represents the complete client configuration
type Config struct {
	Endpoints EndpointConfig  `yaml:"endpoints"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	UserAgent string          `yaml:"user_agent"`
}

// Default returns the configuration used when the caller supplies nothing:
// public RCSB endpoints, 3 retries with a 500ms backoff unit, and no
// client-side rate limiting.
func Default() *Config {
	return &Config{
		Endpoints: EndpointConfig{
			Search:   DefaultSearchURL,
			GraphQL:  DefaultGraphQLURL,
			Fasta:    DefaultFastaURL,
			Download: DefaultDownloadURL,
			RESTData: DefaultRESTDataURL,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseSleep:  Duration(500 * time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             1,
		},
		UserAgent: DefaultUserAgent,
	}
}

// Load reads a YAML configuration file and merges it over the defaults.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "read file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse YAML")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internally inconsistent values
func (c *Config) Validate() error {
	var problems []string

	for name, url := range map[string]string{
		"endpoints.search":    c.Endpoints.Search,
		"endpoints.graphql":   c.Endpoints.GraphQL,
		"endpoints.fasta":     c.Endpoints.Fasta,
		"endpoints.download":  c.Endpoints.Download,
		"endpoints.rest_data": c.Endpoints.RESTData,
	} {
		if url == "" {
			problems = append(problems, name+" is empty")
		}
	}

	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "retry.max_retries cannot be negative")
	}
	if c.Retry.BaseSleep < 0 {
		problems = append(problems, "retry.base_sleep cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		problems = append(problems, "rate_limit.requests_per_second cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		problems = append(problems, "rate_limit.burst must be at least 1 when limiting is enabled")
	}
	if c.UserAgent == "" {
		problems = append(problems, "user_agent is empty")
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "check fields")
	}
	return nil
}
