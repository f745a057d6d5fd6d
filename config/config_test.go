package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "steward.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
log_level  = "debug"
log_format = "json"

listener "api" {
  protocol = "tcp"
  address  = "127.0.0.1:8000"
}

azure {
  tenant_id     = "12345678-1234-1234-1234-123456789012"
  client_id     = "client-1"
  client_secret = "secret-1"
  call_timeout  = "30s"
}

api {
  api_key = "Bearer custom-secret"
}
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)

	require.Len(t, config.Listeners, 1)
	assert.Equal(t, "api", config.Listeners[0].Name)
	assert.Equal(t, "127.0.0.1:8000", config.Listeners[0].Address)

	assert.Equal(t, "Bearer custom-secret", config.API.APIKey)
	require.NoError(t, config.Validate())

	timeout, err := config.CallTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
listener "api" {
  protocol = "tcp"
  address  = "0.0.0.0:8000"
}

azure {
  tenant_id     = "12345678-1234-1234-1234-123456789012"
  client_id     = "file-client"
  client_secret = "file-secret"
}
`)

	t.Setenv("AZURE_CLIENT_ID", "env-client")
	t.Setenv("AZURE_CLIENT_SECRET", "env-secret")
	t.Setenv("API_KEY", "Bearer env-key")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-client", config.Azure.ClientID)
	assert.Equal(t, "env-secret", config.Azure.ClientSecret)
	assert.Equal(t, "12345678-1234-1234-1234-123456789012", config.Azure.TenantID)
	assert.Equal(t, "Bearer env-key", config.API.APIKey)
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("AZURE_TENANT_ID", "12345678-1234-1234-1234-123456789012")
	t.Setenv("AZURE_CLIENT_ID", "client-1")
	t.Setenv("AZURE_CLIENT_SECRET", "secret-1")

	config := DefaultConfig()

	require.Len(t, config.Listeners, 1)
	assert.Equal(t, "0.0.0.0:8000", config.Listeners[0].Address)
	assert.Equal(t, DefaultAPIKey, config.API.APIKey)
	assert.Equal(t, "info", config.LogLevel)
	require.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing azure credentials",
			mutate:  func(c *Config) { c.Azure.ClientSecret = "" },
			wantErr: "client_secret",
		},
		{
			name:    "no listeners",
			mutate:  func(c *Config) { c.Listeners = nil },
			wantErr: "listener",
		},
		{
			name:    "bad call timeout",
			mutate:  func(c *Config) { c.Azure.CallTimeout = "soon" },
			wantErr: "call_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{
				Listeners: []ListenerBlock{{Name: "api", Protocol: "tcp", Address: "0.0.0.0:8000"}},
				Azure: &AzureBlock{
					TenantID:     "12345678-1234-1234-1234-123456789012",
					ClientID:     "client-1",
					ClientSecret: "secret-1",
				},
				API: &APIBlock{APIKey: DefaultAPIKey},
			}
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetListenerByName(t *testing.T) {
	config := &Config{
		Listeners: []ListenerBlock{
			{Name: "api", Protocol: "tcp", Address: "0.0.0.0:8000"},
		},
	}

	l, err := config.GetListenerByName("api")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", l.Address)

	_, err = config.GetListenerByName("missing")
	require.Error(t, err)
}
