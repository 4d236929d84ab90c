package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astra-monitor/internal/aggregator"
	"astra-monitor/internal/cache"
	commondb "astra-monitor/internal/common/database"
	commonmqtt "astra-monitor/internal/common/mqtt"
	commonredis "astra-monitor/internal/common/redis"
	"astra-monitor/internal/config"
	"astra-monitor/internal/evaluator"
	"astra-monitor/internal/models"
	"astra-monitor/internal/notifier"
	"astra-monitor/internal/repository"
	"astra-monitor/internal/scheduler"
	"astra-monitor/internal/source"
)

// MonitorService wires the monitoring core together: registry, event
// store, reading source chain, checker, aggregator and scheduler. All
// dependencies are constructed once here and injected explicitly; there
// are no package-level singletons.
type MonitorService struct {
	config   *config.Config
	registry *config.Registry
	logger   *zap.Logger

	db          *sql.DB
	redisClient *commonredis.Client
	mqttClient  *commonmqtt.Client

	events     *repository.EventsRepository
	checker    *evaluator.Checker
	aggregator *aggregator.Aggregator
	scheduler  *scheduler.Scheduler
}

// NewMonitorService constructs the service and verifies its backing
// connections.
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	registry, err := config.LoadRegistry(cfg.Monitor.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	db, err := commondb.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	events := repository.NewEventsRepository(db, logger)

	var queryCache *cache.QueryCache
	var redisClient *commonredis.Client
	if cfg.Cache.Enabled {
		redisClient = commonredis.NewRedisClient(&cfg.Redis)
		if err := commonredis.Ping(context.Background(), redisClient); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		queryCache = cache.New(redisClient, cfg.Cache.KeyPrefix, time.Duration(cfg.Cache.TTL)*time.Second, logger)
	}

	var breachNotifier evaluator.Notifier
	var mqttClient *commonmqtt.Client
	if cfg.Notify.Enabled {
		mqttClient, err = commonmqtt.NewClient(&cfg.MQTT)
		if err != nil {
			return nil, err
		}
		breachNotifier = notifier.NewBreachNotifier(mqttClient, cfg.Notify.TopicPrefix, cfg.MQTT.QoS, logger)
	}

	checker := evaluator.NewChecker(registry, events, breachNotifier, logger)
	agg := aggregator.New(registry, events, queryCache, logger)

	src := buildSource(cfg, registry, logger)
	sched := scheduler.New(src, checker, time.Duration(cfg.Monitor.PollInterval)*time.Second, logger)

	return &MonitorService{
		config:      cfg,
		registry:    registry,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		events:      events,
		checker:     checker,
		aggregator:  agg,
		scheduler:   sched,
	}, nil
}

// buildSource assembles the reading source chain for the configured
// mode. Live modes are always wrapped with the synthetic fallback so the
// pipeline receives a reading list even when the live path is down.
func buildSource(cfg *config.Config, registry *config.Registry, logger *zap.Logger) source.ReadingSource {
	synthetic := source.NewSyntheticSource(registry, cfg.Monitor.NormalSampleRate, logger)

	switch cfg.Monitor.SourceMode {
	case config.SourceModeSynthetic:
		logger.Info("Using synthetic reading source, no live instruments will be sampled")
		return synthetic
	case config.SourceModeHTTP:
		live := source.NewHTTPSource(cfg.Monitor.HTTPAddress, time.Duration(cfg.Monitor.HTTPTimeout)*time.Second, logger)
		return source.NewFallbackSource(live, synthetic, logger)
	default:
		live := source.NewScriptSource(registry, cfg.Monitor.ScriptPath, time.Duration(cfg.Monitor.ScriptTimeout)*time.Second, logger)
		return source.NewFallbackSource(live, synthetic, logger)
	}
}

// Start ensures the schema and runs the scheduler loop until ctx is
// cancelled.
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.Int("payloads", len(s.registry.Payloads)),
		zap.Int("metrics", len(s.registry.Metrics)),
		zap.Int("poll_interval_seconds", s.config.Monitor.PollInterval),
		zap.String("source_mode", s.config.Monitor.SourceMode),
	)

	if err := s.events.EnsureSchema(ctx); err != nil {
		return err
	}

	return s.scheduler.Start(ctx)
}

// Stop closes backing connections.
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	if err := commondb.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if s.redisClient != nil {
		if err := commonredis.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	return nil
}

// TriggerNow runs one monitoring cycle synchronously and returns the
// events it recorded. Used by external API layers as the manual trigger;
// it may run concurrently with the scheduled loop.
func (s *MonitorService) TriggerNow(ctx context.Context) ([]*models.Event, error) {
	return s.scheduler.RunCycle(ctx)
}

// SchedulerState reports whether the loop is idle or mid-cycle.
func (s *MonitorService) SchedulerState() scheduler.State {
	return s.scheduler.State()
}

// CurrentStatus returns the status matrix for a date window.
func (s *MonitorService) CurrentStatus(ctx context.Context, q aggregator.StatusQuery) (aggregator.StatusMatrix, error) {
	return s.aggregator.CurrentStatus(ctx, q)
}

// Events returns a filtered, sorted, paginated event listing.
func (s *MonitorService) Events(ctx context.Context, q aggregator.EventQuery) (*aggregator.EventPage, error) {
	return s.aggregator.Events(ctx, q)
}

// BreachHistory returns the zero-filled daily breach series for one
// payload/metric pair.
func (s *MonitorService) BreachHistory(ctx context.Context, scid int, metricType, dateFrom, dateTo string) ([]models.DayCount, error) {
	return s.aggregator.BreachHistory(ctx, scid, metricType, dateFrom, dateTo)
}
