package config

import "time"

// Default value constants.
const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBName         = "haven"
	DefaultDBMaxOpenConns = 25
	DefaultDBMaxIdleConns = 10

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "haven:"

	DefaultKafkaBroker = "localhost:9092"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultLiveWithin   = 5 * time.Minute
	DefaultRecentWithin = 60 * time.Minute

	DefaultIdleCadence      = 5 * time.Minute
	DefaultEmergencyCadence = 5 * time.Second

	DefaultTriggerDedupWindow = 30 * time.Second
	DefaultInviteTTL          = 7 * 24 * time.Hour

	DefaultOperatorGrace          = 3 * time.Minute
	DefaultEmergencyServicesGrace = 10 * time.Minute
	DefaultSweepInterval          = 15 * time.Second

	DefaultSubscriberBuffer = 32
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields already set by the caller are left unchanged so that explicit
// configuration always wins.  Must run after unmarshalling and before
// Validate so optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 5 * time.Minute
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "file://migrations"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = time.Hour
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Acks == "" {
		cfg.Kafka.Acks = "all"
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}

	if cfg.Presence.LiveWithin == 0 {
		cfg.Presence.LiveWithin = DefaultLiveWithin
	}
	if cfg.Presence.RecentWithin == 0 {
		cfg.Presence.RecentWithin = DefaultRecentWithin
	}
	if cfg.Presence.IdleCadence == 0 {
		cfg.Presence.IdleCadence = DefaultIdleCadence
	}
	if cfg.Presence.EmergencyCadence == 0 {
		cfg.Presence.EmergencyCadence = DefaultEmergencyCadence
	}
	if cfg.Presence.CacheTTL == 0 {
		cfg.Presence.CacheTTL = 24 * time.Hour
	}

	if cfg.Incident.TriggerDedupWindow == 0 {
		cfg.Incident.TriggerDedupWindow = DefaultTriggerDedupWindow
	}
	if cfg.Incident.InviteTTL == 0 {
		cfg.Incident.InviteTTL = DefaultInviteTTL
	}

	if cfg.Escalation.OperatorGrace == 0 {
		cfg.Escalation.OperatorGrace = DefaultOperatorGrace
	}
	if cfg.Escalation.EmergencyServicesGrace == 0 {
		cfg.Escalation.EmergencyServicesGrace = DefaultEmergencyServicesGrace
	}
	if cfg.Escalation.SweepInterval == 0 {
		cfg.Escalation.SweepInterval = DefaultSweepInterval
	}

	if cfg.Geocode.Timeout == 0 {
		cfg.Geocode.Timeout = 3 * time.Second
	}

	if cfg.Realtime.SubscriberBuffer == 0 {
		cfg.Realtime.SubscriberBuffer = DefaultSubscriberBuffer
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// NewDefaultConfig returns a Config populated entirely from defaults.  The
// database user is left empty, so the result does not pass Validate until the
// caller supplies credentials.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
