// Package config defines all configuration structures for the Haven platform.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the notification fan-out broker parameters.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Acks         string        `mapstructure:"acks"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AuthConfig holds the static bearer tokens that distinguish member and
// operator callers.  Full identity management is an external collaborator;
// the core only needs the two authorization scopes.
type AuthConfig struct {
	MemberTokens   map[string]string `mapstructure:"member_tokens"`   // token → identity
	OperatorTokens map[string]string `mapstructure:"operator_tokens"` // token → operator identity
}

// PresenceConfig holds presence staleness and cadence parameters.
type PresenceConfig struct {
	// LiveWithin / RecentWithin classify lastSeen age into live / recent / idle.
	LiveWithin   time.Duration `mapstructure:"live_within"`
	RecentWithin time.Duration `mapstructure:"recent_within"`

	// IdleCadence / EmergencyCadence are the advisory reporting intervals
	// pushed to clients outside and inside an active incident.
	IdleCadence      time.Duration `mapstructure:"idle_cadence"`
	EmergencyCadence time.Duration `mapstructure:"emergency_cadence"`

	// CacheTTL bounds how long a hot presence record may live in Redis.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// IncidentConfig holds incident lifecycle parameters.
type IncidentConfig struct {
	// TriggerDedupWindow is the window within which a repeated trigger from
	// the same subject returns the existing event instead of failing.
	TriggerDedupWindow time.Duration `mapstructure:"trigger_dedup_window"`

	// InviteTTL bounds how long a family invite stays redeemable.
	InviteTTL time.Duration `mapstructure:"invite_ttl"`
}

// EscalationConfig holds escalation timing parameters.
type EscalationConfig struct {
	// OperatorGrace is how long an active incident may stay unacknowledged
	// before an operator escalation is recommended.
	OperatorGrace time.Duration `mapstructure:"operator_grace"`

	// EmergencyServicesGrace is how long before the emergency-services prompt
	// is recommended.  Always a human-facing recommendation, never a call.
	EmergencyServicesGrace time.Duration `mapstructure:"emergency_services_grace"`

	// SweepInterval is the period of the background escalation sweep.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// GeocodeConfig holds the best-effort reverse geocoding endpoint.
type GeocodeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RealtimeConfig holds subscription-hub tunables.
type RealtimeConfig struct {
	// SubscriberBuffer is the per-subscriber channel depth; a subscriber that
	// falls this far behind is disconnected rather than blocking producers.
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// Config is the root configuration object.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Presence   PresenceConfig   `mapstructure:"presence"`
	Incident   IncidentConfig   `mapstructure:"incident"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Geocode    GeocodeConfig    `mapstructure:"geocode"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Log        LogConfig        `mapstructure:"log"`
}

// LogConfig holds structured-logging parameters.  It mirrors
// logging.LogConfig so the config package does not import infrastructure.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks that every required field is present and every duration is
// sane.  Call after ApplyDefaults.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers is required")
	}
	if c.Presence.LiveWithin <= 0 || c.Presence.RecentWithin <= c.Presence.LiveWithin {
		return fmt.Errorf("config: presence staleness thresholds must satisfy 0 < live_within < recent_within")
	}
	if c.Presence.EmergencyCadence <= 0 || c.Presence.IdleCadence <= c.Presence.EmergencyCadence {
		return fmt.Errorf("config: presence cadences must satisfy 0 < emergency_cadence < idle_cadence")
	}
	if c.Incident.TriggerDedupWindow <= 0 {
		return fmt.Errorf("config: incident.trigger_dedup_window must be positive")
	}
	if c.Escalation.OperatorGrace <= 0 || c.Escalation.EmergencyServicesGrace <= c.Escalation.OperatorGrace {
		return fmt.Errorf("config: escalation graces must satisfy 0 < operator_grace < emergency_services_grace")
	}
	if c.Escalation.SweepInterval <= 0 {
		return fmt.Errorf("config: escalation.sweep_interval must be positive")
	}
	return nil
}
