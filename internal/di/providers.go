package di

import (
	"context"
	"fmt"
	"time"

	"AlphaPipe/internal/domain/repository"
	"AlphaPipe/internal/engine"
	"AlphaPipe/internal/extension"
	"AlphaPipe/internal/handler/api"
	mid "AlphaPipe/internal/middleware"
	internalrepo "AlphaPipe/internal/repository"
	"AlphaPipe/internal/service/feed"
	"AlphaPipe/internal/usecase"
	"AlphaPipe/pkg/cache"
	pkgch "AlphaPipe/pkg/clickhouse"
	"AlphaPipe/pkg/config"
	xhttp "AlphaPipe/pkg/http"
	pkgkafka "AlphaPipe/pkg/kafka"
	applogger "AlphaPipe/pkg/logger"
	"AlphaPipe/pkg/metrics"
	"AlphaPipe/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStatistics creates the runtime statistics extension.
func ProvideStatistics() *extension.Statistics {
	return extension.NewStatistics()
}

// ProvideCharting creates the chart sampling extension.
func ProvideCharting(cfg *config.Config) *extension.Charting {
	return extension.NewCharting(cfg.IsLive(), cfg.Pipeline.ChartSampleInterval)
}

// ProvideEngine creates the insight manager with the standard extension
// chain: scoring first, then statistics and charting over the scored state.
func ProvideEngine(
	cfg *config.Config,
	log *applogger.Logger,
	stats *extension.Statistics,
	chart *extension.Charting,
) (*engine.InsightManager, error) {
	eng := engine.NewInsightManager(log)
	if err := eng.AddExtension(extension.NewScoring()); err != nil {
		return nil, err
	}
	if err := eng.AddExtension(stats); err != nil {
		return nil, err
	}
	if err := eng.AddExtension(chart); err != nil {
		return nil, err
	}
	return eng, nil
}

// ProvideSecurityStore creates the resident security values store.
func ProvideSecurityStore() *internalrepo.SecurityValuesStore {
	return internalrepo.NewSecurityValuesStore()
}

// ProvideClickHouseClient creates a ClickHouse client when the persistence
// backend needs one; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Persistence.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	table := cfg.ClickHouse.Database + ".insights"
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database, table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvidePersistenceSink selects the persistence backend.
func ProvidePersistenceSink(cfg *config.Config, chClient *pkgch.Client) (repository.PersistenceSink, error) {
	switch cfg.Persistence.Backend {
	case "clickhouse":
		table := cfg.ClickHouse.Database + ".insights"
		return internalrepo.NewClickHouseInsightStore(chClient.DB(), table, cfg.RunID), nil
	default:
		return internalrepo.NewFileInsightStore(cfg.Persistence.Dir, cfg.RunID)
	}
}

// ProvideKafkaProducer creates a Kafka producer when the messaging backend
// needs one; otherwise it returns nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Messaging.Backend != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideMessagingSink selects the update message delivery backend.
func ProvideMessagingSink(cfg *config.Config, producer *pkgkafka.Producer, log *applogger.Logger) (repository.MessagingSink, error) {
	switch cfg.Messaging.Backend {
	case "kafka":
		return internalrepo.NewKafkaMessaging(producer, cfg.Messaging.Topic), nil
	case "webhook":
		client := xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
		return internalrepo.NewWebhookMessaging(client, cfg.Messaging.WebhookURL), nil
	default:
		return internalrepo.NewLogMessaging(log), nil
	}
}

// ProvidePipeline creates the processing pipeline controller.
func ProvidePipeline(
	cfg *config.Config,
	eng *engine.InsightManager,
	store *internalrepo.SecurityValuesStore,
	messaging repository.MessagingSink,
	persistence repository.PersistenceSink,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.InsightPipeline {
	return usecase.NewInsightPipeline(
		cfg.RunID, eng, store, messaging, persistence, m, log,
		usecase.WithMessagingInterval(cfg.Pipeline.MessagingInterval),
		usecase.WithPersistenceInterval(cfg.Pipeline.PersistenceInterval),
		usecase.WithIdleSleep(cfg.Pipeline.IdleSleep),
		usecase.WithUniverse(cfg.Feed.Symbols),
	)
}

// ProvideRunner creates the producer-side algorithm runner with the
// built-in momentum generator.
func ProvideRunner(
	store *internalrepo.SecurityValuesStore,
	pipeline usecase.PipelineController,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.AlgorithmRunner {
	return usecase.NewAlgorithmRunner(store, pipeline, m, log,
		usecase.NewMomentumGenerator(20, 0.002, 5*time.Minute),
	)
}

// ProvideFeedGuard builds the ingest guard between the feed and the runner.
func ProvideFeedGuard(runner *usecase.AlgorithmRunner, m repository.Metrics) *mid.FeedGuard {
	return mid.NewFeedGuard(runner, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideMarketFeed creates the WebSocket market feed, or nil when no feed
// URL is configured (pure Kafka-driven runs).
func ProvideMarketFeed(cfg *config.Config, log *applogger.Logger) repository.MarketFeed {
	if cfg.Feed.URL == "" {
		return nil
	}
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.URL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		log,
	)
}

// ProvideCollector creates the feed read loop, or nil when there is no feed.
func ProvideCollector(
	marketFeed repository.MarketFeed,
	guard *mid.FeedGuard,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.FeedCollector {
	if marketFeed == nil {
		return nil
	}
	return usecase.NewFeedCollector(marketFeed, guard, m, log)
}

// ProvideKafkaConsumer creates the inbound insight consumer, or nil when
// the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideKafkaInsightsHandler builds the handler for the inbound insight
// topic, or nil when the consumer is disabled.
func ProvideKafkaInsightsHandler(cfg *config.Config, pipeline usecase.PipelineController, m repository.Metrics) *usecase.KafkaInsightsHandler {
	if !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return usecase.NewKafkaInsightsHandler(cfg.Kafka.Consumer.Topic, pipeline, m)
}

// ProvideCache selects the API response cache backend. Redis failures fall
// back to the in-memory cache rather than failing startup.
func ProvideCache(cfg *config.Config, log *applogger.Logger) cache.Service {
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Host != "" {
		redis, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			log.Warn("redis cache unavailable, using memory cache", applogger.Error(err))
			return cache.NewMemoryCache()
		}
		return cache.NewLayeredCache(redis)
	}
	return cache.NewMemoryCache()
}

// ProvideHTTPHandler builds the status API handler.
func ProvideHTTPHandler(
	log *applogger.Logger,
	persistence repository.PersistenceSink,
	stats *extension.Statistics,
	chart *extension.Charting,
	pipeline usecase.PipelineController,
	cfg *config.Config,
	c cache.Service,
) *api.InsightsHandler {
	h := api.NewInsightsHandler(log, persistence, stats, chart, pipeline)
	h.SetCache(c, cfg.Cache.TTL)
	return h
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	pipeline *usecase.InsightPipeline,
	guard *mid.FeedGuard,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaInsightsHandler,
	chClient *pkgch.Client,
	messaging repository.MessagingSink,
	persistence repository.PersistenceSink,
	handler *api.InsightsHandler,
) *server.App {
	return server.New(cfg, log, pipeline, guard, collector, consumer, kh, chClient, messaging, persistence, handler)
}
