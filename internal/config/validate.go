package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var validAuthMethods = map[AuthMethod]bool{
	AuthMethodPairingCode:     true,
	AuthMethodSharedSecret:    true,
	AuthMethodCertificate:     true,
	AuthMethodIdentityAccount: true,
	AuthMethodBiometric:       true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the config for invalid values and returns all errors
// found. Dangerous zero-values that would cause panics or unbounded
// resource use are clamped to safe defaults; other validation errors
// are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range, clamping to 9847", c.Port))
		c.Port = 9847
	}

	if !validAuthMethods[c.AuthMethod] {
		errs = append(errs, fmt.Errorf("auth_method %q is not recognized, clamping to %q", c.AuthMethod, AuthMethodPairingCode))
		c.AuthMethod = AuthMethodPairingCode
	}

	if c.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("max_connections %d is below minimum 1, clamping", c.MaxConnections))
		c.MaxConnections = 1
	} else if c.MaxConnections > 1000 {
		errs = append(errs, fmt.Errorf("max_connections %d exceeds maximum 1000, clamping", c.MaxConnections))
		c.MaxConnections = 1000
	}

	if c.AuthTimeoutSeconds < 5 {
		errs = append(errs, fmt.Errorf("auth_timeout_seconds %d is below minimum 5, clamping", c.AuthTimeoutSeconds))
		c.AuthTimeoutSeconds = 5
	} else if c.AuthTimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("auth_timeout_seconds %d exceeds maximum 600, clamping", c.AuthTimeoutSeconds))
		c.AuthTimeoutSeconds = 600
	}

	if c.SessionTimeoutSeconds < 30 {
		errs = append(errs, fmt.Errorf("session_timeout_seconds %d is below minimum 30, clamping", c.SessionTimeoutSeconds))
		c.SessionTimeoutSeconds = 30
	}

	if c.MaxFileTransferBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_file_transfer_bytes %d must be positive, clamping to default", c.MaxFileTransferBytes))
		c.MaxFileTransferBytes = Default().MaxFileTransferBytes
	}

	if c.AuditRetentionDays < 1 {
		errs = append(errs, fmt.Errorf("audit_retention_days %d is below minimum 1, clamping", c.AuditRetentionDays))
		c.AuditRetentionDays = 1
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("rate_limit_per_minute %d is below minimum 1, clamping", c.RateLimitPerMinute))
		c.RateLimitPerMinute = 1
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
