// Package config provides configuration loading and management for the dispatch server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variables read by the
// dispatch server (e.g. CHEF_DISPATCH_LOG_LEVEL).
const EnvPrefix = "CHEF_DISPATCH"

const (
	// SourceTypeGit is the type for table documents stored in Git repositories
	SourceTypeGit = "git"

	// SourceTypeHTTP is the type for table documents fetched from HTTP endpoints
	SourceTypeHTTP = "http"

	// SourceTypeFile is the type for table documents stored in local files
	SourceTypeFile = "file"
)

const (
	// FormatJSON is the JSON table document format (comments tolerated)
	FormatJSON = "json"

	// FormatYAML is the YAML table document format
	FormatYAML = "yaml"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// InstanceName is the name/identifier for this dispatch server instance
	// Defaults to "default" if not specified
	InstanceName string        `yaml:"instanceName,omitempty"`
	Tables       []TableConfig `yaml:"tables"`

	// Server holds optional HTTP server settings
	Server *ServerConfig `yaml:"server,omitempty"`

	// Telemetry holds optional metrics and tracing settings
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`

	// Status holds optional sync status persistence settings
	Status *StatusConfig `yaml:"status,omitempty"`
}

// TableConfig defines a single dispatch table source configuration
type TableConfig struct {
	// Name is the identifier for this table
	Name string `yaml:"name"`

	// Format specifies the document format (json or yaml)
	// Defaults to json, or to the file extension for file sources
	Format string `yaml:"format,omitempty"`

	// Type-specific configurations (only one should be set)
	Git  *GitConfig  `yaml:"git,omitempty"`
	HTTP *HTTPConfig `yaml:"http,omitempty"`
	File *FileConfig `yaml:"file,omitempty"`

	// Per-table sync policy
	SyncPolicy *SyncPolicyConfig `yaml:"syncPolicy,omitempty"`

	// Per-table filtering rules
	Filter *FilterConfig `yaml:"filter,omitempty"`
}

// GitConfig defines Git source settings
type GitConfig struct {
	// Repository is the Git repository URL (HTTP/HTTPS/SSH)
	Repository string `yaml:"repository"`

	// Branch is the Git branch to use (mutually exclusive with Tag and Commit)
	Branch string `yaml:"branch,omitempty"`

	// Tag is the Git tag to use (mutually exclusive with Branch and Commit)
	Tag string `yaml:"tag,omitempty"`

	// Commit is the Git commit SHA to use (mutually exclusive with Branch and Tag)
	Commit string `yaml:"commit,omitempty"`

	// Path is the path to the table document within the repository
	Path string `yaml:"path,omitempty"`

	// Username enables HTTP basic authentication for private repositories
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the Git password or token
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`
}

// GetPassword returns the Git password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from CHEF_DISPATCH_GIT_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (g *GitConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if g.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(g.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", g.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv("CHEF_DISPATCH_GIT_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no git password configured: set passwordFile or CHEF_DISPATCH_GIT_PASSWORD environment variable",
	)
}

// HTTPConfig defines HTTP source settings
type HTTPConfig struct {
	// Endpoint is the URL serving the table document
	// Example: "https://config.internal.example.com/tables/base.json"
	Endpoint string `yaml:"endpoint"`
}

// FileConfig defines local file source configuration
type FileConfig struct {
	// Path is the path to the table document on the local filesystem
	// Can be absolute or relative to the working directory
	Path string `yaml:"path"`
}

// SyncPolicyConfig defines synchronization settings
type SyncPolicyConfig struct {
	// Interval is the periodic re-fetch cadence (e.g. "30m", "1h")
	Interval string `yaml:"interval,omitempty"`

	// Watch enables filesystem watching for file sources, reloading the
	// table as soon as the document changes
	Watch bool `yaml:"watch,omitempty"`
}

// FilterConfig defines filtering rules for table entries
type FilterConfig struct {
	Keys      *FilterCriteria `yaml:"keys,omitempty"`
	Platforms *FilterCriteria `yaml:"platforms,omitempty"`
}

// FilterCriteria defines include/exclude lists for one filter dimension
type FilterCriteria struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address (e.g. ":8080")
	Address string `yaml:"address,omitempty"`
}

// TelemetryConfig defines metrics and tracing settings
type TelemetryConfig struct {
	// Mode selects the exporter: "off", "prometheus", or "otlp"
	// Defaults to "off"
	Mode string `yaml:"mode,omitempty"`

	// Endpoint is the OTLP collector endpoint (host:port), otlp mode only
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS for the OTLP exporter connection
	Insecure bool `yaml:"insecure,omitempty"`

	// SamplingRate is the trace sampling rate (0.0-1.0), otlp mode only
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// StatusConfig defines sync status persistence settings
type StatusConfig struct {
	// Path is the status file location
	// Defaults to a file under the XDG data directory
	Path string `yaml:"path,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetInstanceName returns the instance name, using "default" if not specified
func (c *Config) GetInstanceName() string {
	if c.InstanceName == "" {
		return "default"
	}
	return c.InstanceName
}

// Validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate at least one table is configured
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}

	// Validate each table configuration
	tableNames := make(map[string]bool)
	for i, tbl := range c.Tables {
		// Validate table name
		if tbl.Name == "" {
			return fmt.Errorf("table[%d]: name is required", i)
		}

		// Check for duplicate table names
		if tableNames[tbl.Name] {
			return fmt.Errorf("table[%d]: duplicate table name '%s'", i, tbl.Name)
		}
		tableNames[tbl.Name] = true

		// Validate table-specific configuration
		if err := c.validateTableConfig(&tbl, i); err != nil {
			return err
		}
	}

	if err := validateTelemetry(c.Telemetry); err != nil {
		return err
	}

	return nil
}

// validateTableConfig validates a single table configuration
func (*Config) validateTableConfig(tbl *TableConfig, index int) error {
	prefix := fmt.Sprintf("table[%d] (%s)", index, tbl.Name)

	// Validate document format
	if err := validateFormat(tbl.Format, prefix); err != nil {
		return err
	}

	// Validate exactly one source type is configured
	if err := validateSourceTypeCount(tbl, prefix); err != nil {
		return err
	}

	// Validate sync policy
	if err := validateSyncPolicy(tbl, prefix); err != nil {
		return err
	}

	// Validate type-specific settings
	return validateSourceSpecificConfig(tbl, prefix)
}

// validateFormat validates the document format name
func validateFormat(format, prefix string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON, "jsonc", FormatYAML, "yml":
		return nil
	default:
		return fmt.Errorf("%s: format must be %s or %s, got %s", prefix, FormatJSON, FormatYAML, format)
	}
}

// validateSyncPolicy validates the sync policy configuration
func validateSyncPolicy(tbl *TableConfig, prefix string) error {
	policy := tbl.SyncPolicy
	if policy == nil || (policy.Interval == "" && !policy.Watch) {
		return fmt.Errorf("%s: syncPolicy.interval or syncPolicy.watch is required", prefix)
	}

	if policy.Watch && tbl.File == nil {
		return fmt.Errorf("%s: syncPolicy.watch is only supported for file sources", prefix)
	}

	// Try to parse the interval to ensure it's valid
	if policy.Interval != "" {
		interval, err := time.ParseDuration(policy.Interval)
		if err != nil {
			return fmt.Errorf("%s: syncPolicy.interval must be a valid duration (e.g., '30m', '1h'): %w", prefix, err)
		}
		if interval <= 0 {
			return fmt.Errorf("%s: syncPolicy.interval must be positive", prefix)
		}
	}

	return nil
}

// validateSourceTypeCount ensures exactly one source type is configured
func validateSourceTypeCount(tbl *TableConfig, prefix string) error {
	configCount := 0
	if tbl.Git != nil {
		configCount++
	}
	if tbl.HTTP != nil {
		configCount++
	}
	if tbl.File != nil {
		configCount++
	}

	if configCount == 0 {
		return fmt.Errorf("%s: one of git, http, or file configuration must be specified", prefix)
	}
	if configCount > 1 {
		return fmt.Errorf("%s: only one of git, http, or file configuration may be specified", prefix)
	}

	return nil
}

// validateSourceSpecificConfig validates the configuration for each source type
func validateSourceSpecificConfig(tbl *TableConfig, prefix string) error {
	if tbl.Git != nil {
		return validateGitConfig(tbl.Git, prefix)
	}

	if tbl.HTTP != nil {
		return validateHTTPConfig(tbl.HTTP, prefix)
	}

	if tbl.File != nil {
		return validateFileConfig(tbl.File, prefix)
	}

	return nil
}

// validateGitConfig validates Git-specific configuration
func validateGitConfig(git *GitConfig, prefix string) error {
	if git.Repository == "" {
		return fmt.Errorf("%s: git.repository is required", prefix)
	}

	refCount := 0
	if git.Branch != "" {
		refCount++
	}
	if git.Tag != "" {
		refCount++
	}
	if git.Commit != "" {
		refCount++
	}
	if refCount > 1 {
		return fmt.Errorf("%s: only one of git.branch, git.tag, or git.commit may be specified", prefix)
	}

	return nil
}

// validateHTTPConfig validates HTTP-specific configuration
func validateHTTPConfig(httpCfg *HTTPConfig, prefix string) error {
	if httpCfg.Endpoint == "" {
		return fmt.Errorf("%s: http.endpoint is required", prefix)
	}

	parsed, err := url.Parse(httpCfg.Endpoint)
	if err != nil {
		return fmt.Errorf("%s: http.endpoint is not a valid URL: %w", prefix, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: http.endpoint must use http or https, got %q", prefix, parsed.Scheme)
	}

	return nil
}

// validateFileConfig validates File-specific configuration
func validateFileConfig(file *FileConfig, prefix string) error {
	if file.Path == "" {
		return fmt.Errorf("%s: file.path is required", prefix)
	}
	return nil
}

// validateTelemetry validates the telemetry configuration
func validateTelemetry(tel *TelemetryConfig) error {
	if tel == nil {
		return nil
	}

	switch tel.Mode {
	case "", "off", "prometheus":
	case "otlp":
		if tel.Endpoint == "" {
			return fmt.Errorf("telemetry: endpoint is required in otlp mode")
		}
	default:
		return fmt.Errorf("telemetry: mode must be off, prometheus, or otlp, got %s", tel.Mode)
	}

	if tel.SamplingRate < 0 || tel.SamplingRate > 1 {
		return fmt.Errorf("telemetry: samplingRate must be between 0.0 and 1.0")
	}

	return nil
}

// GetType returns the inferred type of the table config based on which field is present
func (t *TableConfig) GetType() string {
	if t.Git != nil {
		return SourceTypeGit
	}
	if t.HTTP != nil {
		return SourceTypeHTTP
	}
	if t.File != nil {
		return SourceTypeFile
	}
	return ""
}
