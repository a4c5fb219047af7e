package di

import (
	"context"
	"fmt"
	"time"

	domrepo "Agora/internal/domain/repository"
	"Agora/internal/handler/api"
	internalrepo "Agora/internal/repository"
	"Agora/internal/service/ratelimit"
	"Agora/internal/services/conflict"
	"Agora/internal/services/council"
	"Agora/internal/services/performance"
	"Agora/internal/services/risk"
	"Agora/internal/usecase"
	"Agora/pkg/cache"
	pkgch "Agora/pkg/clickhouse"
	"Agora/pkg/config"
	xhttp "Agora/pkg/http"
	pkgkafka "Agora/pkg/kafka"
	applogger "Agora/pkg/logger"
	"Agora/pkg/metrics"
	"Agora/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const initTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideKafkaProducer creates a Kafka producer. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideDecisionPublisher streams decisions to Kafka, or drops them when
// Kafka is disabled.
func ProvideDecisionPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.DecisionPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.Topics.Decisions)
}

// ProvideClickHouseClient creates a ClickHouse client. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	c := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(c.Host),
		pkgch.WithPort(c.Port),
		pkgch.WithDatabase(c.Database),
		pkgch.WithCredentials(c.User, c.Password),
		pkgch.WithMaxConnections(c.MaxOpenConns, c.MaxIdleConns),
		pkgch.WithHTTP(c.UseHTTP),
		pkgch.WithAsyncInsert(c.AsyncInsert, c.WaitForAsync),
		pkgch.WithTimeouts(c.DialTimeout, c.ReadTimeout, c.WriteTimeout),
		pkgch.WithMaxExecutionTime(c.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideDecisionJournal journals to ClickHouse when a client is configured,
// otherwise keeps a bounded in-memory trail.
func ProvideDecisionJournal(ch *pkgch.Client, l *applogger.Logger) (domrepo.DecisionJournal, error) {
	var j domrepo.DecisionJournal
	if ch == nil {
		j = internalrepo.NewMemoryDecisionJournal(0)
	} else {
		j = internalrepo.NewClickHouseDecisionJournal(ch, l)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := j.Init(ctx); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("decision journal: %w", err)
	}
	return j, nil
}

// ProvideStateStore picks the checkpoint backend.
func ProvideStateStore(cfg *config.Config) (domrepo.StateStore, error) {
	switch cfg.State.Backend {
	case "none":
		return internalrepo.NoopStateStore{}, nil
	case "redis":
		r := cfg.Redis
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(r.Host),
			cache.WithRedisPort(r.Port),
			cache.WithRedisPassword(r.Password),
			cache.WithRedisDB(r.DB),
			cache.WithRedisPool(r.PoolSize, r.PoolSize/2, 5*time.Second),
			cache.WithRedisPrefix(r.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("state store: %w", err)
		}
		return internalrepo.NewCacheStateStore(rc, cfg.State.Key, cfg.State.LockTTL), nil
	default:
		return internalrepo.NewCacheStateStore(cache.NewMemoryCache(), cfg.State.Key, cfg.State.LockTTL), nil
	}
}

// ProvideTracker creates the module performance tracker.
func ProvideTracker(cfg *config.Config) *performance.Tracker {
	return performance.New(
		performance.WithWindow(cfg.Performance.Window),
		performance.WithMinSamples(cfg.Performance.MinSamples),
	)
}

// ProvideCouncilEngine creates the consensus engine.
func ProvideCouncilEngine() *council.Engine {
	return council.NewEngine()
}

// ProvideScorer creates the composite scorer. Configured profiles are laid
// over the stock ones.
func ProvideScorer(cfg *config.Config, tracker *performance.Tracker) (*council.Scorer, error) {
	registry, err := cfg.ModuleRegistry()
	if err != nil {
		return nil, err
	}
	weights, err := cfg.ProfileWeights()
	if err != nil {
		return nil, err
	}
	profiles := council.DefaultProfiles()
	for name, w := range weights {
		profiles[name] = council.Profile(w)
	}

	opts := []council.ScorerOption{council.WithProfiles(profiles)}
	if cfg.Council.PerformanceWeighting {
		opts = append(opts, council.WithWeightSource(tracker))
	}
	return council.NewScorer(registry, opts...), nil
}

// ProvideConflictDetector creates the conflict detector.
func ProvideConflictDetector(cfg *config.Config) (*conflict.Detector, error) {
	registry, err := cfg.ModuleRegistry()
	if err != nil {
		return nil, err
	}
	t := cfg.Council.Conflict
	return conflict.New(registry, conflict.WithThresholds(conflict.Thresholds{
		Low:      t.Low,
		Medium:   t.Medium,
		High:     t.High,
		Critical: t.Critical,
	})), nil
}

// ProvideRiskGate creates the risk gate from the risk section.
func ProvideRiskGate(cfg *config.Config) (*risk.Gate, error) {
	g, err := risk.New(cfg.Risk,
		risk.WithMaxEquityPoints(cfg.State.MaxEquityPoints),
		risk.WithMaxHistory(cfg.State.MaxHistory),
	)
	if err != nil {
		return nil, fmt.Errorf("risk gate: %w", err)
	}
	return g, nil
}

// ProvideDecisionUseCase creates the decision pipeline.
func ProvideDecisionUseCase(
	cfg *config.Config,
	engine *council.Engine,
	detector *conflict.Detector,
	tracker *performance.Tracker,
	gate *risk.Gate,
	pub domrepo.DecisionPublisher,
	journal domrepo.DecisionJournal,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.DecisionUseCase {
	return usecase.NewDecisionUseCase(engine, detector, tracker, gate, pub, journal, m,
		usecase.WithPerformanceWeighting(cfg.Council.PerformanceWeighting),
		usecase.WithPredictionRecording(cfg.Council.RecordPredictions),
		usecase.WithDecisionLogger(l.With(applogger.String("component", "decision"))),
	)
}

// ProvideKafkaConsumer creates a consumer for the opinion and outcome topics.
// Nil when Kafka or its consumer is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	uc *usecase.DecisionUseCase,
	tracker *performance.Tracker,
	m domrepo.Metrics,
	l *applogger.Logger,
	reg *prometheus.Registry,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerStartOffset(c.StartOffset),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	hl := l.With(applogger.String("component", "kafka"))
	consumer.RegisterHandler(usecase.NewKafkaOpinionsHandler(cfg.Kafka.Topics.Opinions, uc, m, hl))
	consumer.RegisterHandler(usecase.NewKafkaOutcomesHandler(cfg.Kafka.Topics.Outcomes, tracker, m, hl))
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideCheckpointer creates the state checkpointer.
func ProvideCheckpointer(
	cfg *config.Config,
	store domrepo.StateStore,
	tracker *performance.Tracker,
	gate *risk.Gate,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Checkpointer {
	return usecase.NewCheckpointer(store, tracker, gate, m, l.With(applogger.String("component", "checkpoint")), cfg.State.Interval)
}

// ProvideDecisionHandler creates the HTTP handler.
func ProvideDecisionHandler(
	l *applogger.Logger,
	uc *usecase.DecisionUseCase,
	scorer *council.Scorer,
	detector *conflict.Detector,
	tracker *performance.Tracker,
	gate *risk.Gate,
	journal domrepo.DecisionJournal,
) *api.DecisionHandler {
	return api.NewDecisionHandler(l, uc, scorer, detector, tracker, gate, journal)
}

// ProvideHTTPServer creates the Echo server with the configured middleware.
func ProvideHTTPServer(cfg *config.Config, h *api.DecisionHandler, l *applogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	s := cfg.Server
	opts := []xhttp.ServerOption{
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithCORS(s.CORS),
		xhttp.WithSlowRequest(s.SlowRequest),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithRegistry(reg, reg))
	} else {
		unserved := prometheus.NewRegistry()
		opts = append(opts, xhttp.WithRegistry(unserved, unserved))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, xhttp.WithMiddleware(ratelimit.Middleware(
			ratelimit.New(cfg.RateLimit.Burst, cfg.RateLimit.RefillPerSec),
		)))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp assembles the application and attaches the Kafka log collector
// when one is configured.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	cp *usecase.Checkpointer,
	producer *pkgkafka.Producer,
	pub domrepo.DecisionPublisher,
	journal domrepo.DecisionJournal,
	store domrepo.StateStore,
) *server.App {
	if producer != nil && cfg.Logging.CollectorTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.CollectorInterval,
			CountThreshold: cfg.Logging.CollectorMax,
			Topic:          cfg.Logging.CollectorTopic,
			Publisher:      producer,
			PublishTimeout: 5 * time.Second,
		})
	}
	return server.New(cfg, l, srv, consumer, cp,
		server.Closer{Name: "publisher", Close: pub.Close},
		server.Closer{Name: "journal", Close: journal.Close},
		server.Closer{Name: "state store", Close: store.Close},
	)
}
