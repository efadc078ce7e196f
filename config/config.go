package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (catalog + match state)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseReconnectRetryCount   int           `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (locks, rate limits, cost ledger)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka job queue
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaJobsTopic       string   `env:"KAFKA_JOBS_TOPIC" env-default:"matching-jobs"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-workers"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	KafkaWorkerCount     int      `env:"KAFKA_WORKER_COUNT" env-default:"4"`

	// Kafka Producer settings
	KafkaEventsTopic  string `env:"KAFKA_EVENTS_TOPIC" env-default:"match-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Matching pipeline
	FuzzyPartThreshold       float64       `env:"FUZZY_PART_THRESHOLD" env-default:"0.65"`
	ExactChunkSize           int           `env:"EXACT_CHUNK_SIZE" env-default:"500"`
	FuzzyChunkSize           int           `env:"FUZZY_CHUNK_SIZE" env-default:"200"`
	AIChunkSize              int           `env:"AI_CHUNK_SIZE" env-default:"25"`
	WebSearchChunkSize       int           `env:"WEB_SEARCH_CHUNK_SIZE" env-default:"10"`
	SupersessionChunkSize    int           `env:"SUPERSESSION_CHUNK_SIZE" env-default:"25"`
	SelectorMaxCandidates    int           `env:"SELECTOR_MAX_CANDIDATES" env-default:"100"`
	SelectorMinScore         float64       `env:"SELECTOR_MIN_SCORE" env-default:"10"`
	CostRatioCheckEnabled    bool          `env:"COST_RATIO_CHECK_ENABLED" env-default:"true"`
	InterchangeFirstTieBreak bool          `env:"INTERCHANGE_FIRST_TIE_BREAK" env-default:"true"`
	StaleJobTimeout          time.Duration `env:"STALE_JOB_TIMEOUT" env-default:"5m"`
	CatalogCacheTTL          time.Duration `env:"CATALOG_CACHE_TTL" env-default:"10m"`

	// LLM provider
	LLMAPIKey          string        `env:"LLM_API_KEY" env-default:""`
	LLMAPIURL          string        `env:"LLM_API_URL" env-default:"https://api.anthropic.com/v1/messages"`
	LLMModel           string        `env:"LLM_MODEL" env-default:"claude-3-5-haiku-latest"`
	LLMMaxTokens       int           `env:"LLM_MAX_TOKENS" env-default:"1024"`
	LLMRequestTimeout  time.Duration `env:"LLM_REQUEST_TIMEOUT" env-default:"60s"`
	LLMRequestsPerMin  int           `env:"LLM_REQUESTS_PER_MIN" env-default:"50"`
	LLMCostPerItemUSD  float64       `env:"LLM_COST_PER_ITEM_USD" env-default:"0.02"`
	DefaultAIBudgetUSD float64       `env:"DEFAULT_AI_BUDGET_USD" env-default:"20"`

	// Web search provider
	SearchAPIKey         string        `env:"SEARCH_API_KEY" env-default:""`
	SearchAPIURL         string        `env:"SEARCH_API_URL" env-default:"https://api.search.brave.com/res/v1/web/search"`
	SearchRequestTimeout time.Duration `env:"SEARCH_REQUEST_TIMEOUT" env-default:"30s"`
	SearchRequestsPerMin int           `env:"SEARCH_REQUESTS_PER_MIN" env-default:"60"`
	SearchMinResults     int           `env:"SEARCH_MIN_RESULTS" env-default:"2"`
	SearchCostPerCallUSD float64       `env:"SEARCH_COST_PER_CALL_USD" env-default:"0.005"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingExporter string `env:"TRACING_EXPORTER" env-default:"console"`
	OTLPEndpoint    string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
}
