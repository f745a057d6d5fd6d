package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultAPIKey is the expected shared secret when neither the config file
// nor the API_KEY environment variable sets one.
const DefaultAPIKey = "Bearer test123"

// Config is the configuration for the steward server.
type Config struct {
	LogLevel           string `hcl:"log_level,optional"`
	LogFormat          string `hcl:"log_format,optional"`
	LogFile            string `hcl:"log_file,optional"`
	LogRotateMegabytes int    `hcl:"log_rotate_megabytes,optional"`
	LogRotateMaxFiles  int    `hcl:"log_rotate_max_files,optional"`

	Listeners []ListenerBlock `hcl:"listener,block"`
	Azure     *AzureBlock     `hcl:"azure,block"`
	API       *APIBlock       `hcl:"api,block"`
}

// AzureBlock holds the client-credential grant parameters and directory
// endpoint settings.
type AzureBlock struct {
	TenantID     string `hcl:"tenant_id,optional"`
	ClientID     string `hcl:"client_id,optional"`
	ClientSecret string `hcl:"client_secret,optional"`
	BaseURL      string `hcl:"base_url,optional"`
	CallTimeout  string `hcl:"call_timeout,optional"`
}

// APIBlock holds the request-gateway settings.
type APIBlock struct {
	// APIKey is the expected value of the Authorization header, compared
	// byte-for-byte against incoming requests.
	APIKey string `hcl:"api_key,optional"`

	// GateMemberAdds requires callers of /add_members to be a scoped admin
	// of MemberAddAUID. Off by default.
	GateMemberAdds bool   `hcl:"gate_member_adds,optional"`
	MemberAddAUID  string `hcl:"member_add_au_id,optional"`
}

type ListenerBlock struct {
	Name            string `hcl:"name,label"`
	Protocol        string `hcl:"protocol"`
	Address         string `hcl:"address"`
	TLSCertFile     string `hcl:"tls_cert_file,optional"`
	TLSKeyFile      string `hcl:"tls_key_file,optional"`
	TLSClientCAFile string `hcl:"tls_client_ca_file,optional"`
	TLSEnabled      bool   `hcl:"tls_enabled,optional"`
}

// LoadConfig reads an HCL config file and applies environment overrides.
func LoadConfig(configFile string) (*Config, error) {
	var config Config

	err := hclsimple.DecodeFile(configFile, nil, &config)
	if err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

// DefaultConfig returns a config populated from environment variables only,
// with a single plaintext listener, so a deployment configured entirely via
// environment can run without a config file.
func DefaultConfig() *Config {
	config := &Config{
		Listeners: []ListenerBlock{
			{Name: "api", Protocol: "tcp", Address: "0.0.0.0:8000"},
		},
	}
	config.applyEnv()
	config.applyDefaults()
	return config
}

// applyEnv lets environment variables override file values. The env names
// are the deployment contract: API_KEY, AZURE_TENANT_ID, AZURE_CLIENT_ID,
// AZURE_CLIENT_SECRET.
func (c *Config) applyEnv() {
	if c.Azure == nil {
		c.Azure = &AzureBlock{}
	}
	if c.API == nil {
		c.API = &APIBlock{}
	}

	if v := os.Getenv("AZURE_TENANT_ID"); v != "" {
		c.Azure.TenantID = v
	}
	if v := os.Getenv("AZURE_CLIENT_ID"); v != "" {
		c.Azure.ClientID = v
	}
	if v := os.Getenv("AZURE_CLIENT_SECRET"); v != "" {
		c.Azure.ClientSecret = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.API.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.API.APIKey == "" {
		c.API.APIKey = DefaultAPIKey
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "default"
	}
}

// Validate checks that the credential-grant inputs are present. Called for
// live (non-dev) servers only; missing inputs are a configuration error.
func (c *Config) Validate() error {
	if c.Azure == nil || c.Azure.TenantID == "" || c.Azure.ClientID == "" || c.Azure.ClientSecret == "" {
		return fmt.Errorf("azure tenant_id, client_id and client_secret are required (config file azure block or AZURE_* environment variables)")
	}
	if len(c.Listeners) == 0 {
		return fmt.Errorf("at least one listener is required")
	}
	if _, err := c.CallTimeout(); err != nil {
		return err
	}
	return nil
}

// CallTimeout parses the per-call directory timeout, 0 meaning "use default".
func (c *Config) CallTimeout() (time.Duration, error) {
	if c.Azure == nil || c.Azure.CallTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Azure.CallTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid azure call_timeout: %w", err)
	}
	return d, nil
}

// GetListenerByName returns a listener by its name (label)
func (c *Config) GetListenerByName(name string) (*ListenerBlock, error) {
	for _, listener := range c.Listeners {
		if listener.Name == name {
			return &listener, nil
		}
	}
	return nil, fmt.Errorf("listener '%s' not found", name)
}
