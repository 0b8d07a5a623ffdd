package engine

import (
	"log/slog"
)

// Config holds delegation engine configuration
type Config struct {
	// Issuer is the engine's issuer identifier, stamped into every token
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 300 (5 minutes)

	// GrantTTL is how long an authorization attempt may remain in flight
	// before being abandoned
	GrantTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// SessionTokenTTL is how long session tokens issued at login are valid
	SessionTokenTTL int64 // seconds, default: 86400 (24 hours)

	// DelegationTokenTTL is how long delegation tokens and verifiable
	// credentials are valid
	DelegationTokenTTL int64 // seconds, default: 3600 (1 hour)

	// ClockSkewGracePeriod is the grace period for token expiration checks (in seconds)
	// This prevents false expiration errors due to time synchronization issues
	// Default: 5 seconds
	ClockSkewGracePeriod int64 // seconds, default: 5

	// SupportedScopes lists the scopes that clients may request.
	// If empty, all scopes are allowed.
	SupportedScopes []string

	// DisableAuditLogging turns off security audit events.
	// Default: false (auditing enabled)
	DisableAuditLogging bool
}

// applySecureDefaults applies secure-by-default configuration values
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	applyTimeDefaults(config)
	logSecurityWarnings(config, logger)
	return config
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 300 // 5 minutes
	}
	if config.GrantTTL == 0 {
		config.GrantTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.SessionTokenTTL == 0 {
		config.SessionTokenTTL = 86400 // 24 hours
	}
	if config.DelegationTokenTTL == 0 {
		config.DelegationTokenTTL = 3600 // 1 hour
	}
	if config.ClockSkewGracePeriod == 0 {
		config.ClockSkewGracePeriod = 5
	}
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.DisableAuditLogging {
		logger.Warn("SECURITY WARNING: audit logging is DISABLED",
			"risk", "Token issuance and consent decisions will not be traceable",
			"recommendation", "Leave DisableAuditLogging=false in production")
	}
	if len(config.SupportedScopes) == 0 {
		logger.Warn("SECURITY WARNING: no scope allowlist configured",
			"risk", "Clients may request arbitrary scopes",
			"recommendation", "Set SupportedScopes to the scopes your resources understand")
	}
	if config.AuthorizationCodeTTL > 600 {
		logger.Warn("SECURITY WARNING: authorization code TTL exceeds 10 minutes",
			"configured_seconds", config.AuthorizationCodeTTL,
			"recommendation", "Keep codes short-lived; they are single-use bearer artifacts")
	}
}
