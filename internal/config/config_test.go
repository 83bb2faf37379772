package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/config"
)

// validConfig returns a Config that passes Validate with all required fields set.
func validConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Database.User = "haven"
	cfg.Database.Password = "secret"
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_MissingDatabaseUser(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.User = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user")
}

func TestConfig_Validate_StalenessOrdering(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Presence.RecentWithin = cfg.Presence.LiveWithin
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_CadenceOrdering(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Presence.IdleCadence = time.Second
	cfg.Presence.EmergencyCadence = time.Minute
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_EscalationGraceOrdering(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Escalation.EmergencyServicesGrace = cfg.Escalation.OperatorGrace
	require.Error(t, cfg.Validate())
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	assert.Equal(t, config.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultTriggerDedupWindow, cfg.Incident.TriggerDedupWindow)
	assert.Equal(t, config.DefaultOperatorGrace, cfg.Escalation.OperatorGrace)
	assert.Equal(t, config.DefaultEmergencyServicesGrace, cfg.Escalation.EmergencyServicesGrace)
	assert.Equal(t, config.DefaultLiveWithin, cfg.Presence.LiveWithin)
	assert.Equal(t, []string{config.DefaultKafkaBroker}, cfg.Kafka.Brokers)
}

func TestApplyDefaults_DoesNotOverrideExplicit(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Escalation.OperatorGrace = 7 * time.Minute
	config.ApplyDefaults(cfg)
	assert.Equal(t, 7*time.Minute, cfg.Escalation.OperatorGrace)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9191
database:
  user: haven
  password: secret
escalation:
  operator_grace: 2m
  emergency_services_grace: 8m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Escalation.OperatorGrace)
	assert.Equal(t, 8*time.Minute, cfg.Escalation.EmergencyServicesGrace)
	// Unset sections pick up defaults.
	assert.Equal(t, config.DefaultRedisAddr, cfg.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
