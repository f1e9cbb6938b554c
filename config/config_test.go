package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamgilpin/pypdb/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultSearchURL, cfg.Endpoints.Search)
	assert.Equal(t, DefaultGraphQLURL, cfg.Endpoints.GraphQL)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Retry.BaseSleep)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pypdb.yaml")
	content := `
retry:
  max_retries: 5
  base_sleep: 250ms
user_agent: my-pipeline/1.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden fields
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Retry.BaseSleep)
	assert.Equal(t, "my-pipeline/1.0", cfg.UserAgent)

	// Untouched fields keep defaults
	assert.Equal(t, DefaultSearchURL, cfg.Endpoints.Search)
	assert.Equal(t, DefaultDownloadURL, cfg.Endpoints.Download)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty search endpoint", func(c *Config) { c.Endpoints.Search = "" }, true},
		{"empty rest endpoint", func(c *Config) { c.Endpoints.RESTData = "" }, true},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, true},
		{"negative sleep", func(c *Config) { c.Retry.BaseSleep = Duration(-time.Second) }, true},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }, true},
		{"rate without burst", func(c *Config) {
			c.RateLimit.RequestsPerSecond = 2
			c.RateLimit.Burst = 0
		}, true},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }, true},
		{"zero retries allowed", func(c *Config) { c.Retry.MaxRetries = 0 }, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
