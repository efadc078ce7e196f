package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/catalogitem"
	"github.com/Ramsey-B/fern/internal/repositories/interchange"
	"github.com/Ramsey-B/fern/internal/repositories/masterrule"
	"github.com/Ramsey-B/fern/internal/repositories/matchcandidate"
	"github.com/Ramsey-B/fern/internal/repositories/matchingjob"
	"github.com/Ramsey-B/fern/internal/repositories/project"
	"github.com/Ramsey-B/fern/pkg/ai"
	"github.com/Ramsey-B/fern/pkg/catalogcache"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestrator"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	masterruleroutes "github.com/Ramsey-B/fern/pkg/routes/masterrule"
	matchcandidateroutes "github.com/Ramsey-B/fern/pkg/routes/matchcandidate"
	matchingjobroutes "github.com/Ramsey-B/fern/pkg/routes/matchingjob"
	"github.com/Ramsey-B/fern/pkg/rules"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/supersession"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/websearch"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	var zapLogger *zap.Logger
	if cfg.PrettyLogs {
		zapLogger = zap.Must(zap.NewDevelopment())
	} else {
		zapLogger = zap.Must(zap.NewProduction())
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			fatal(logger, "Failed to set up tracing", err)
		}
		defer shutdown(ctx)
	}

	sqlxDB, err := connectDatabase(cfg)
	if err != nil {
		fatal(logger, "Failed to connect to database", err)
	}
	defer sqlxDB.Close()
	db := database.NewDatabaseInstance(sqlxDB, logger)

	if err := runMigrations(cfg, sqlxDB, logger); err != nil {
		fatal(logger, "Failed to run migrations", err)
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		fatal(logger, "Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	locker := redis.NewLocker(redisClient, "fern:lock")
	rateLimiter := redis.NewRateLimiter(redisClient, "fern:ratelimit")
	llmLimiter := redis.NewKeyLimiter(rateLimiter, "llm", int64(cfg.LLMRequestsPerMin), time.Minute)
	searchLimiter := redis.NewKeyLimiter(rateLimiter, "search", int64(cfg.SearchRequestsPerMin), time.Minute)
	ledger := redis.NewCostLedger(redisClient, logger)

	// Repositories
	itemsRepo := catalogitem.NewRepository(db, logger)
	interchangeRepo := interchange.NewRepository(db, logger)
	candidatesRepo := matchcandidate.NewRepository(db, logger)
	rulesRepo := masterrule.NewRepository(db, logger)
	jobsRepo := matchingjob.NewRepository(db, logger)
	projectsRepo := project.NewRepository(db, logger)

	// Matching stages
	engCfg := orchestrator.EngineConfigFrom(cfg)
	exactMatcher := matching.NewExactMatcher(engCfg)
	fuzzyMatcher := matching.NewFuzzyMatcher(engCfg)
	selector := matching.NewSelector(engCfg)

	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	llmClient := ai.NewAnthropicClient(ai.AnthropicConfig{
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMRequestTimeout,
	}, httpClient, llmLimiter, logger)
	aiMatcher := ai.NewMatcher(llmClient, ai.MatcherConfig{
		CostPerItemUSD: cfg.LLMCostPerItemUSD,
	}, logger)

	searchClient := websearch.NewClient(websearch.ClientConfig{
		APIKey:  cfg.SearchAPIKey,
		APIURL:  cfg.SearchAPIURL,
		Timeout: cfg.SearchRequestTimeout,
	}, httpClient, searchLimiter, logger)
	webMatcher := websearch.NewMatcher(searchClient, llmClient, selector, websearch.MatcherConfig{
		MinResults: cfg.SearchMinResults,
	}, logger)
	superMatcher := supersession.NewMatcher(llmClient, searchClient, exactMatcher, logger)
	ruleEngine := rules.NewEngine(logger)

	supplierCache := catalogcache.New(cfg.CatalogCacheTTL, func(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
		return itemsRepo.ListSuppliers(ctx, appctx.GetTenantID(ctx), projectID)
	}, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		JobsTopic:    cfg.KafkaJobsTopic,
		EventsTopic:  cfg.KafkaEventsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	executor := orchestrator.NewExecutor(
		cfg,
		orchestrator.Repos{
			Jobs:        jobsRepo,
			Projects:    projectsRepo,
			Items:       itemsRepo,
			Interchange: interchangeRepo,
			Candidates:  candidatesRepo,
			Rules:       rulesRepo,
		},
		orchestrator.Matchers{
			RuleEngine:   ruleEngine,
			Exact:        exactMatcher,
			Fuzzy:        fuzzyMatcher,
			Selector:     selector,
			AI:           aiMatcher,
			Web:          webMatcher,
			Supersession: superMatcher,
		},
		producer, locker, ledger, supplierCache, workerID, logger,
	)

	var processor *orchestrator.Processor
	if cfg.KafkaConsumerEnabled {
		processor = orchestrator.NewProcessor(cfg, executor, logger)
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(sqlxDB, redisPinger{redisClient}, version)
	if processor != nil {
		checker.SetProcessor(processor)
	}
	checker.RegisterRoutes(e)

	enqueuer := orchestrator.NewEnqueuer(jobsRepo, producer, logger)
	api := e.Group("/api/v1")
	matchingjobroutes.NewHandler(jobsRepo, enqueuer, logger).Register(api.Group("/matching-jobs"))
	matchcandidateroutes.NewHandler(candidatesRepo, itemsRepo, rulesRepo, producer, locker, logger).Register(api.Group("/match-candidates"))
	masterruleroutes.NewHandler(rulesRepo, logger).Register(api.Group("/master-rules"))

	boot := startup.NewStartup[any](logger, cfg.StartupMaxAttempts)
	if processor != nil {
		boot.AddDependency(&dependency{
			name:  "job-processor",
			start: processor.Start,
			stop:  func(context.Context) error { return processor.Stop() },
		})
	}
	boot.AddDependency(&dependency{
		name: "http-server",
		deps: dependsOnProcessor(processor),
		start: func(context.Context) error {
			go func() {
				if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
					fatal(logger, "HTTP server failed", err)
				}
			}()
			return nil
		},
		stop: e.Shutdown,
	})

	if err := boot.Start(ctx); err != nil {
		fatal(logger, "Startup failed", err)
	}
	checker.SetReady(true)
	logger.WithFields(map[string]any{
		"port":      cfg.Port,
		"worker_id": workerID,
	}).Infof("%s listening on :%d", cfg.AppName, cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown did not complete cleanly")
	}
}

func connectDatabase(cfg config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)
	db, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	return db, nil
}

func runMigrations(cfg config.Config, db *sqlx.DB, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}
	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if cfg.TracingExporter == "otlp" {
		otlpCfg := exporters.DefaultOTLPConfig()
		otlpCfg.Endpoint = cfg.OTLPEndpoint
		var err error
		exporter, err = exporters.NewOTLPExporter(ctx, otlpCfg)
		if err != nil {
			return nil, err
		}
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AppName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	return tp.Shutdown, nil
}

func fatal(logger ectologger.Logger, msg string, err error) {
	logger.WithError(err).Error(msg)
	os.Exit(1)
}

// redisPinger adapts the redis client to the health checker's Ping interface
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.client.Ping(ctx)
}

// dependency is a closure-backed startup dependency
type dependency struct {
	name  string
	deps  []string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

func (d *dependency) GetName() string                 { return d.name }
func (d *dependency) DependsOn() []string             { return d.deps }
func (d *dependency) Start(ctx context.Context) error { return d.start(ctx) }
func (d *dependency) Stop(ctx context.Context) error  { return d.stop(ctx) }

func dependsOnProcessor(p *orchestrator.Processor) []string {
	if p == nil {
		return nil
	}
	return []string{"job-processor"}
}
