// Package config provides configuration loading for supper.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override file settings,
// e.g. SUPPER_CLIENT_SECRET.
const EnvPrefix = "SUPPER_"

// ErrInvalid is returned when the configuration is missing required values.
var ErrInvalid = errors.New("invalid config")

// Config is the root configuration structure.
type Config struct {
	ClientID     string `yaml:"client_id" koanf:"client_id"`
	ClientSecret string `yaml:"client_secret" koanf:"client_secret"`
	TenantID     string `yaml:"tenant_id" koanf:"tenant_id"`

	// OOOEmail is the mailbox that owns the shared out-of-office calendar.
	OOOEmail string `yaml:"ooo_email" koanf:"ooo_email"`

	// Users is the staff roster. Normalized to lowercase, sorted and unique.
	Users []string `yaml:"users" koanf:"users"`

	TokenPath   string `yaml:"token_path,omitempty" koanf:"token_path"`
	RedirectURI string `yaml:"redirect_uri,omitempty" koanf:"redirect_uri"`
	GraphURL    string `yaml:"graph_url,omitempty" koanf:"graph_url"`

	Source  SourceConfig `yaml:"source,omitempty" koanf:"source"`
	Filters FilterConfig `yaml:"filters,omitempty" koanf:"filters"`
}

// SourceConfig selects where out-of-office events are read from.
type SourceConfig struct {
	Type        string   `yaml:"type,omitempty" koanf:"type"` // "ms365", "ics", "caldav"
	URL         string   `yaml:"url,omitempty" koanf:"url"`
	Username    string   `yaml:"username,omitempty" koanf:"username"`
	Password    string   `yaml:"password,omitempty" koanf:"password"`
	PasswordCmd string   `yaml:"password_cmd,omitempty" koanf:"password_cmd"`
	Calendars   []string `yaml:"calendars,omitempty" koanf:"calendars"` // For CalDAV: which calendars to query
}

// FilterConfig configures event filtering.
type FilterConfig struct {
	Mode  string       `yaml:"mode,omitempty" koanf:"mode"` // "or" or "and"
	Rules []FilterRule `yaml:"rules,omitempty" koanf:"rules"`
}

// FilterRule defines a single filter rule.
// Use exactly one of: Contains, Exact, Prefix, Suffix, or Regex.
type FilterRule struct {
	Field           string `yaml:"field" koanf:"field"`                        // "subject", "organizer", "attendee"
	Contains        string `yaml:"contains,omitempty" koanf:"contains"`        // Substring match
	Exact           string `yaml:"exact,omitempty" koanf:"exact"`              // Exact string match
	Prefix          string `yaml:"prefix,omitempty" koanf:"prefix"`            // Starts with
	Suffix          string `yaml:"suffix,omitempty" koanf:"suffix"`            // Ends with
	Regex           string `yaml:"regex,omitempty" koanf:"regex"`              // Regular expression
	Exclude         bool   `yaml:"exclude,omitempty" koanf:"exclude"`          // Drop matching events instead of keeping them
	CaseInsensitive bool   `yaml:"case_insensitive" koanf:"case_insensitive"`
}

// Source types.
const (
	SourceMS365  = "ms365"
	SourceICS    = "ics"
	SourceCalDAV = "caldav"
)

// DefaultPath returns the default config location (~/.config/supper.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "supper.yaml"
	}
	return filepath.Join(home, ".config", "supper.yaml")
}

// Load reads configuration from path, then overlays SUPPER_* environment
// variables, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no config file given", ErrInvalid)
	}
	path = expandPath(path)

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified config options.
func (c *Config) applyDefaults() {
	if c.TokenPath == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = "."
		}
		c.TokenPath = filepath.Join(cacheDir, "supper", "token.json")
	}
	c.TokenPath = expandPath(c.TokenPath)

	if c.RedirectURI == "" {
		c.RedirectURI = "https://login.microsoftonline.com/common/oauth2/nativeclient"
	}
	if c.GraphURL == "" {
		c.GraphURL = "https://graph.microsoft.com/v1.0"
	}
	if c.Source.Type == "" {
		c.Source.Type = SourceMS365
	}
	if c.Filters.Mode == "" {
		c.Filters.Mode = "or"
	}
	c.Users = normalizeUsers(c.Users)
}

// Validate checks that every value needed for a run is present.
func (c *Config) Validate() error {
	var missing []string
	if c.Source.Type == SourceMS365 {
		if c.ClientID == "" {
			missing = append(missing, "client_id")
		}
		if c.ClientSecret == "" {
			missing = append(missing, "client_secret")
		}
		if c.TenantID == "" {
			missing = append(missing, "tenant_id")
		}
	}
	if c.OOOEmail == "" {
		missing = append(missing, "ooo_email")
	}
	if len(c.Users) == 0 {
		missing = append(missing, "users")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}

	switch c.Source.Type {
	case SourceMS365:
	case SourceICS, SourceCalDAV:
		if c.Source.URL == "" {
			return fmt.Errorf("%w: source.url is required for %s sources", ErrInvalid, c.Source.Type)
		}
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalid, c.Source.Type)
	}

	if c.Filters.Mode != "or" && c.Filters.Mode != "and" {
		return fmt.Errorf("%w: filters.mode must be \"or\" or \"and\", got %q", ErrInvalid, c.Filters.Mode)
	}

	return nil
}

// Save writes the configuration to path as YAML, readable only by the owner
// since it holds the client secret.
func (c *Config) Save(path string) error {
	path = expandPath(path)

	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config to %s: %w", path, err)
	}
	return nil
}

// GetPassword returns the source password, executing password_cmd if needed.
func (s *SourceConfig) GetPassword() (string, error) {
	if s.Password != "" {
		return s.Password, nil
	}
	if s.PasswordCmd == "" {
		return "", nil
	}

	cmd := exec.Command("sh", "-c", s.PasswordCmd)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("execute password_cmd: %w", err)
	}

	return strings.TrimSpace(string(out)), nil
}

// normalizeUsers lowercases, de-duplicates and sorts the roster.
func normalizeUsers(users []string) []string {
	seen := make(map[string]struct{}, len(users))
	out := make([]string, 0, len(users))
	for _, u := range users {
		u = strings.ToLower(strings.TrimSpace(u))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
