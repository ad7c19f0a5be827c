package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config models the optional config file at ~/.config/st/config.yml.
// Credentials never live here; they come from the environment.
type Config struct {
	// GitHubOrgID scopes the busy status to one organization. Empty means
	// visible everywhere.
	GitHubOrgID string `yaml:"github_org_id"`
	// AsanaUserGID is the user whose out-of-office state is checked.
	AsanaUserGID string `yaml:"asana_user_gid"`
	// Workspace is where the invocation history database lives. Defaults to
	// the home directory.
	Workspace string `yaml:"workspace"`
	Serve     struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"serve"`
}

// Credentials are the per-service API tokens. They are read from the
// environment only and never from the config file.
type Credentials struct {
	Slack  string
	GitHub string
	Asana  string
}

// Path returns the config file location.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = ".config"
	}
	return filepath.Join(dir, "st", "config.yml")
}

// Load reads the config file if present; a missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return withDefaults(&Config{}), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return withDefaults(&cfg), nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Serve.BasePath != "" && !strings.HasPrefix(c.Serve.BasePath, "/") {
		return fmt.Errorf("config.serve.base_path must start with /")
	}
	if c.AsanaUserGID != "" && strings.ContainsAny(c.AsanaUserGID, "/ ") {
		return fmt.Errorf("config.asana_user_gid must be a bare Asana user gid")
	}
	return nil
}

func withDefaults(cfg *Config) *Config {
	if cfg.Workspace == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Workspace = home
		} else {
			cfg.Workspace = "."
		}
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = "127.0.0.1:8477"
	}
	if cfg.Serve.BasePath == "" {
		cfg.Serve.BasePath = "/v1"
	}
	return cfg
}

// CredentialsFromEnv reads the service tokens through viper. The variable
// names match the original tool's: SLACK_PAT, GITHUB_PAT, ASANA_PAT.
func CredentialsFromEnv() Credentials {
	_ = viper.BindEnv("slack_pat", "SLACK_PAT")
	_ = viper.BindEnv("github_pat", "GITHUB_PAT")
	_ = viper.BindEnv("asana_pat", "ASANA_PAT")
	return Credentials{
		Slack:  viper.GetString("slack_pat"),
		GitHub: viper.GetString("github_pat"),
		Asana:  viper.GetString("asana_pat"),
	}
}
