package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bootorder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadDefaultsDryRun(t *testing.T) {
	config, err := Load(&model.Args{DryRun: true})
	require.NoError(t, err)

	assert.True(t, config.DryRun)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, defaultIntersightEndpoint, config.IntersightOptions.Endpoint)
	assert.Equal(t, defaultIntersightTimeout, config.IntersightOptions.Timeout)
	assert.Equal(t, defaultIntersightRetryMax, config.IntersightOptions.RetryMax)
	assert.Equal(t, []string{"default"}, config.IntersightOptions.Organizations)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
metrics_endpoint: localhost:9090
intersight:
  endpoint: https://intersight.example.com/api/v1
  timeout: 10s
  retry_max: 5
  token_url: https://auth.example.com/token
  oidc_client_id: bootorder
  oidc_client_secret: hunter2
  oidc_client_scopes:
    - read
    - write
`)

	config, err := Load(&model.Args{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "localhost:9090", config.MetricsEndpoint)
	assert.Equal(t, "https://intersight.example.com/api/v1", config.IntersightOptions.Endpoint)
	assert.Equal(t, 10*time.Second, config.IntersightOptions.Timeout)
	assert.Equal(t, 5, config.IntersightOptions.RetryMax)
	assert.Equal(t, []string{"read", "write"}, config.IntersightOptions.OidcClientScopes)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
intersight:
  disable_oauth: true
`)

	t.Setenv("BOOTORDER_LOG_LEVEL", "warn")
	t.Setenv("BOOTORDER_INTERSIGHT_ENDPOINT", "https://env.example.com/api/v1")
	t.Setenv("BOOTORDER_INTERSIGHT_RETRY_MAX", "1")

	config, err := Load(&model.Args{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, "https://env.example.com/api/v1", config.IntersightOptions.Endpoint)
	assert.Equal(t, 1, config.IntersightOptions.RetryMax)
	assert.True(t, config.IntersightOptions.DisableOAuth)
}

func TestLoadArgsWin(t *testing.T) {
	t.Setenv("BOOTORDER_LOG_LEVEL", "warn")

	config, err := Load(&model.Args{LogLevel: "debug", DryRun: true, EnableProfiling: true})
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.EnableProfiling)
}

func TestLoadLogLevelPrecedence(t *testing.T) {
	path := writeConfig(t, "log_level: debug\ndry_run: true\n")

	// an unset --log-level flag reaches Load as the empty string
	config, err := Load(&model.Args{ConfigFile: path, LogLevel: ""})
	require.NoError(t, err)
	assert.Equal(t, "debug", config.LogLevel)

	t.Setenv("BOOTORDER_LOG_LEVEL", "error")

	config, err = Load(&model.Args{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "error", config.LogLevel)

	config, err = Load(&model.Args{ConfigFile: path, LogLevel: "info"})
	require.NoError(t, err)
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	testcases := []struct {
		name    string
		content string
	}{
		{"missing credentials", "intersight:\n  token_url: https://auth.example.com/token\n"},
		{"missing token source", "intersight:\n  oidc_client_id: a\n  oidc_client_secret: b\n"},
		{"relative endpoint", "intersight:\n  endpoint: /api/v1\n  disable_oauth: true\n"},
		{"negative retries", "intersight:\n  retry_max: -1\n  disable_oauth: true\n"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(&model.Args{ConfigFile: writeConfig(t, tc.content)})
			assert.ErrorIs(t, err, model.ErrConfig)
		})
	}

	_, err := Load(&model.Args{ConfigFile: "/does/not/exist.yaml"})
	assert.ErrorIs(t, err, model.ErrConfig)
}
