// Command worker runs the Haven background process: the periodic escalation
// sweep and the notification delivery consumer.  The sweep is the safety net
// behind the API server's per-incident timers; the consumer drains the Kafka
// notification topics and hands events to the delivery provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/havenloop/haven/internal/config"
	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres/repositories"
	"github.com/havenloop/haven/internal/infrastructure/messaging/kafka"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/internal/scheduler"
)

const (
	defaultConfigPath = "configs/config.yaml"
	consumerGroupID   = "haven-worker"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
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
	log = log.Named("haven.worker")

	conn, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	incidentRepo := repositories.NewPostgresIncidentRepo(conn, log)
	escalationRepo := repositories.NewPostgresEscalationRepo(conn, log)

	producer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer producer.Close()

	escalations := escalation.NewService(escalationRepo, incidentRepo,
		kafka.NewNotifier(producer, "haven-worker", log),
		escalation.Config{
			OperatorGrace:          cfg.Escalation.OperatorGrace,
			EmergencyServicesGrace: cfg.Escalation.EmergencyServicesGrace,
		}, log)

	sweep := scheduler.NewLoop("sweep", cfg.Escalation.SweepInterval, func(ctx context.Context) error {
		fired, err := escalations.Sweep(ctx)
		if err != nil {
			return err
		}
		if fired > 0 {
			log.Info("Escalation sweep fired actions", logging.Int("fired", fired))
		}
		return nil
	}, log)

	delivery := newDeliveryHandler(log)
	consumer, err := kafka.NewConsumer(cfg.Kafka, consumerGroupID, kafka.TopicIncidentNotify, delivery.Handle, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sweep.Run(ctx) })
	g.Go(func() error { return consumer.Run(ctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info("worker stopped")
	return nil
}

// deliveryHandler is the hand-off point to the external notification
// provider.  The core's responsibility ends at a durable, keyed event; the
// provider integration is deployment-specific, so this handler records the
// delivery intent.
type deliveryHandler struct {
	log logging.Logger
}

func newDeliveryHandler(log logging.Logger) *deliveryHandler {
	return &deliveryHandler{log: log.Named("delivery")}
}

func (h *deliveryHandler) Handle(ctx context.Context, env *kafka.EventEnvelope) error {
	var payload kafka.IncidentTriggeredPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	h.log.Info("Dispatching incident alert",
		logging.String("incident_id", payload.IncidentID),
		logging.String("subject_id", payload.SubjectID),
		logging.Int("recipients", len(payload.Recipients)),
		logging.String("event_id", env.EventID))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}
