// Package config loads and persists the server configuration record
// described by the data model: immutable during a session, re-read on
// restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// AuthMethod is the closed enum of supported authentication methods.
type AuthMethod string

const (
	AuthMethodPairingCode     AuthMethod = "pairing_code"
	AuthMethodSharedSecret    AuthMethod = "shared_secret"
	AuthMethodCertificate     AuthMethod = "certificate"
	AuthMethodIdentityAccount AuthMethod = "identity_of_account"
	AuthMethodBiometric       AuthMethod = "biometric"
)

// CapabilityToggles gates which request-type variants the dispatcher
// will route at all, independent of per-session permission grants.
type CapabilityToggles struct {
	Screen      bool `mapstructure:"screen"`
	Input       bool `mapstructure:"input"`
	Files       bool `mapstructure:"files"`
	System      bool `mapstructure:"system"`
	Audio       bool `mapstructure:"audio"`
	Recording   bool `mapstructure:"recording"`
	Clipboard   bool `mapstructure:"clipboard"`
	Chat        bool `mapstructure:"chat"`
	Annotations bool `mapstructure:"annotations"`
	TOTP        bool `mapstructure:"totp"`
}

// RecordingArchive configures optional upload of completed recordings
// to remote object storage. An empty Provider disables archival.
type RecordingArchive struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Account  string `mapstructure:"account"`
	Project  string `mapstructure:"project"`
	KeyID    string `mapstructure:"key_id"`
	KeySec   string `mapstructure:"key_secret"`
}

// Config is the persisted server configuration record.
type Config struct {
	ServerName            string            `mapstructure:"server_name"`
	Port                  int               `mapstructure:"port"`
	MaxConnections        int               `mapstructure:"max_connections"`
	AuthMethod            AuthMethod        `mapstructure:"auth_method"`
	AuthTimeoutSeconds    int               `mapstructure:"auth_timeout_seconds"`
	RequireConfirmation   bool              `mapstructure:"require_confirmation"`
	DiscoveryEnabled      bool              `mapstructure:"discovery_enabled"`
	Capabilities          CapabilityToggles `mapstructure:"capabilities"`
	Whitelist             []string          `mapstructure:"whitelist"`
	SessionTimeoutSeconds int               `mapstructure:"session_timeout_seconds"`
	MaxFileTransferBytes  int64             `mapstructure:"max_file_transfer_bytes"`
	AllowedPaths          []string          `mapstructure:"allowed_paths"`
	BlockedPaths          []string          `mapstructure:"blocked_paths"`
	AuditRetentionDays    int               `mapstructure:"audit_retention_days"`
	RateLimitPerMinute    int               `mapstructure:"rate_limit_per_minute"`
	RecordingDir          string            `mapstructure:"recording_dir"`
	RecordingArchive      RecordingArchive  `mapstructure:"recording_archive"`

	// TLSCertFile/TLSKeyFile are the server's TLS 1.3 listener
	// certificate, distinct from the P-256 ECDH/auth identity keypair
	// held in the secret store.
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	// AdminSocketPath is the loopback-only admin IPC socket theactl
	// connects to.
	AdminSocketPath string `mapstructure:"admin_socket_path"`

	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	LogFile      string `mapstructure:"log_file"`
	LogMaxSizeMB int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int   `mapstructure:"log_max_backups"`
}

// Default returns the specification's documented defaults.
func Default() *Config {
	return &Config{
		ServerName:            hostnameOrDefault(),
		Port:                  9847,
		MaxConnections:        10,
		AuthMethod:            AuthMethodPairingCode,
		AuthTimeoutSeconds:    30,
		RequireConfirmation:   true,
		DiscoveryEnabled:      false,
		Capabilities:          CapabilityToggles{Screen: true, Input: true, Files: true, System: true},
		Whitelist:             nil,
		SessionTimeoutSeconds: 3600,
		MaxFileTransferBytes:  100 * 1024 * 1024,
		AllowedPaths:          nil,
		BlockedPaths:          nil,
		AuditRetentionDays:    90,
		RateLimitPerMinute:    10,
		RecordingDir:          filepath.Join(GetDataDir(), "recordings"),
		RecordingArchive:      RecordingArchive{},
		TLSCertFile:           "",
		TLSKeyFile:            "",
		AdminSocketPath:       "",
		LogLevel:              "info",
		LogFormat:             "text",
		LogFile:               "",
		LogMaxSizeMB:          50,
		LogMaxBackups:         3,
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "thea-host"
	}
	return h
}

// Load reads configuration from cfgFile (if non-empty) or the default
// search path (working directory, then the per-OS config directory),
// overlaying environment variables prefixed THEA_, falling back to
// Default() values for anything unset.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("thead")
	v.SetConfigType("yaml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("THEA")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("server_name", def.ServerName)
	v.SetDefault("port", def.Port)
	v.SetDefault("max_connections", def.MaxConnections)
	v.SetDefault("auth_method", def.AuthMethod)
	v.SetDefault("auth_timeout_seconds", def.AuthTimeoutSeconds)
	v.SetDefault("require_confirmation", def.RequireConfirmation)
	v.SetDefault("discovery_enabled", def.DiscoveryEnabled)
	v.SetDefault("session_timeout_seconds", def.SessionTimeoutSeconds)
	v.SetDefault("max_file_transfer_bytes", def.MaxFileTransferBytes)
	v.SetDefault("audit_retention_days", def.AuditRetentionDays)
	v.SetDefault("rate_limit_per_minute", def.RateLimitPerMinute)
	v.SetDefault("recording_dir", def.RecordingDir)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_max_size_mb", def.LogMaxSizeMB)
	v.SetDefault("log_max_backups", def.LogMaxBackups)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Save persists cfg to the default config path for the current OS.
func (c *Config) Save() error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	return c.SaveTo(filepath.Join(dir, "thead.yaml"))
}

// SaveTo persists cfg as YAML to path, creating parent directories and
// restricting permissions to the owner.
func (c *Config) SaveTo(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.Set("server_name", c.ServerName)
	v.Set("port", c.Port)
	v.Set("max_connections", c.MaxConnections)
	v.Set("auth_method", c.AuthMethod)
	v.Set("auth_timeout_seconds", c.AuthTimeoutSeconds)
	v.Set("require_confirmation", c.RequireConfirmation)
	v.Set("discovery_enabled", c.DiscoveryEnabled)
	v.Set("capabilities", c.Capabilities)
	v.Set("whitelist", c.Whitelist)
	v.Set("session_timeout_seconds", c.SessionTimeoutSeconds)
	v.Set("max_file_transfer_bytes", c.MaxFileTransferBytes)
	v.Set("allowed_paths", c.AllowedPaths)
	v.Set("blocked_paths", c.BlockedPaths)
	v.Set("audit_retention_days", c.AuditRetentionDays)
	v.Set("rate_limit_per_minute", c.RateLimitPerMinute)
	v.Set("recording_dir", c.RecordingDir)
	v.Set("recording_archive", c.RecordingArchive)
	v.Set("tls_cert_file", c.TLSCertFile)
	v.Set("tls_key_file", c.TLSKeyFile)
	v.Set("admin_socket_path", c.AdminSocketPath)
	v.Set("log_level", c.LogLevel)
	v.Set("log_format", c.LogFormat)
	v.Set("log_file", c.LogFile)
	v.Set("log_max_size_mb", c.LogMaxSizeMB)
	v.Set("log_max_backups", c.LogMaxBackups)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write config: %w", err)
	}
	return os.Chmod(path, 0600)
}

// GetDataDir returns the per-OS application-support directory under
// which audit logs and recordings are stored.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("ProgramData"); base != "" {
			return filepath.Join(base, "Thea")
		}
		return `C:\ProgramData\Thea`
	case "darwin":
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support", "Thea")
		}
		return "/Library/Application Support/Thea"
	default:
		if os.Geteuid() == 0 {
			return "/var/lib/thea"
		}
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".local", "share", "thea")
		}
		return "/var/lib/thea"
	}
}

func configDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("ProgramData"); base != "" {
			return filepath.Join(base, "Thea"), nil
		}
		return "", fmt.Errorf("config: ProgramData not set")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Thea"), nil
	default:
		if os.Geteuid() == 0 {
			return "/etc/thea", nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: resolve home directory: %w", err)
		}
		return filepath.Join(home, ".config", "thea"), nil
	}
}
