// Command apiserver runs the Haven API server: membership registry, presence
// service, incident state machine, acknowledgement protocol, operator
// oversight, and the realtime websocket hub.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/havenloop/haven/internal/application/oversight"
	"github.com/havenloop/haven/internal/config"
	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/domain/membership"
	"github.com/havenloop/haven/internal/domain/presence"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres/repositories"
	"github.com/havenloop/haven/internal/infrastructure/database/redis"
	"github.com/havenloop/haven/internal/infrastructure/geocode"
	"github.com/havenloop/haven/internal/infrastructure/messaging/kafka"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/prometheus"
	havenhttp "github.com/havenloop/haven/internal/interfaces/http"
	"github.com/havenloop/haven/internal/interfaces/http/handlers"
	"github.com/havenloop/haven/internal/interfaces/http/middleware"
	"github.com/havenloop/haven/internal/realtime"
	"github.com/havenloop/haven/internal/scheduler"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	migrateOnStart := flag.Bool("migrate", false, "apply pending schema migrations before serving")
	flag.Parse()

	if err := run(*configPath, *migrateOnStart); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, migrateOnStart bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	log = log.Named("haven")
	logging.SetDefault(log)

	// ── System of record ────────────────────────────────────────────────

	conn, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if migrateOnStart && cfg.Database.MigrationsPath != "" {
		if err := conn.RunMigrations(cfg.Database.MigrationsPath); err != nil {
			return err
		}
	}

	membershipRepo := repositories.NewPostgresMembershipRepo(conn, log)
	presenceRepo := repositories.NewPostgresPresenceRepo(conn, log)
	incidentRepo := repositories.NewPostgresIncidentRepo(conn, log)
	escalationRepo := repositories.NewPostgresEscalationRepo(conn, log)

	// ── Hot path: cache and locks ───────────────────────────────────────

	redisClient, err := redis.NewClient(cfg.Redis, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.DefaultTTL, log)
	lockFactory := redis.NewLockFactory(redisClient, log)
	cachedPresenceRepo := redis.NewPresenceCache(presenceRepo, cache, cfg.Presence.CacheTTL, log)

	// ── Notification fan-out ────────────────────────────────────────────

	producer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer producer.Close()

	if tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, log); err == nil {
		if err := tm.EnsureDefaultTopics(context.Background()); err != nil {
			log.Warn("Failed to ensure Kafka topics; relying on broker auto-create", logging.Err(err))
		}
		_ = tm.Close()
	} else {
		log.Warn("Kafka topic manager unavailable", logging.Err(err))
	}

	streamNotifier := kafka.NewNotifier(producer, "haven-apiserver", log)

	hub := realtime.NewHub(cfg.Realtime.SubscriberBuffer, log)
	hubPublisher := realtime.NewPublisher(hub)

	// ── Metrics ─────────────────────────────────────────────────────────

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "haven",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return err
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	// ── Domain services ─────────────────────────────────────────────────

	memberships := membership.NewService(membershipRepo,
		redis.MembershipLockFactory{Factory: lockFactory},
		membership.Config{InviteTTL: cfg.Incident.InviteTTL}, log)

	presenceSvc := presence.NewService(cachedPresenceRepo, memberships, memberships, hubPublisher,
		presence.Config{
			Thresholds: presence.Thresholds{
				LiveWithin:   cfg.Presence.LiveWithin,
				RecentWithin: cfg.Presence.RecentWithin,
			},
			IdleCadence:      cfg.Presence.IdleCadence,
			EmergencyCadence: cfg.Presence.EmergencyCadence,
		}, log)

	escalations := escalation.NewService(escalationRepo, incidentRepo, streamNotifier,
		escalation.Config{
			OperatorGrace:          cfg.Escalation.OperatorGrace,
			EmergencyServicesGrace: cfg.Escalation.EmergencyServicesGrace,
		}, log)

	timers := scheduler.NewTimers(log)
	notifier := &compositeNotifier{
		stream:         streamNotifier,
		hub:            hubPublisher,
		timers:         timers,
		escalations:    escalations,
		operatorGrace:  cfg.Escalation.OperatorGrace,
		emergencyGrace: cfg.Escalation.EmergencyServicesGrace,
		log:            log.Named("notifier"),
	}

	incidents := incident.NewService(incidentRepo, presenceSvc, memberships, notifier,
		geocode.NewClient(cfg.Geocode, log), timers,
		incident.Config{TriggerDedupWindow: cfg.Incident.TriggerDedupWindow}, log)

	oversightSvc := oversight.NewService(incidents, escalations, memberships,
		&compositeBroadcaster{stream: streamNotifier, hub: hubPublisher}, log)

	// ── HTTP surface ────────────────────────────────────────────────────

	router := havenhttp.NewRouter(havenhttp.RouterConfig{
		Membership: handlers.NewMembershipHandler(memberships),
		Presence:   handlers.NewPresenceHandler(presenceSvc),
		Incidents:  handlers.NewIncidentHandler(incidents, escalations),
		Oversight:  handlers.NewOversightHandler(oversightSvc),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": handlers.PingerFunc(conn.HealthCheck),
			"redis":    handlers.PingerFunc(redisClient.Ping),
		}),
		WS:               handlers.NewWSHandler(hub, memberships, log),
		Auth:             middleware.NewAuthMiddleware(cfg.Auth),
		Logger:           log,
		Metrics:          appMetrics,
		MetricsCollector: collector,
		Mode:             havenhttp.ModeFromConfig(cfg.Server),
	})

	server := havenhttp.NewServer(cfg.Server, router, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info("apiserver stopped")
	return nil
}

// loadConfig reads the config file, falling back to HAVEN_* environment
// variables when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}
