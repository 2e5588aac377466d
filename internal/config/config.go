package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//embedding
	//both strategies emit this dimensionality; a store refuses mixed dims
	EmbeddingDimension   = 1536
	OpenAIEmbeddingModel = "text-embedding-3-small"
	EmbeddingStrategyKey = "EMBEDDING_STRATEGY" //external | local

	//chunking defaults (characters)
	ChunkMaxSize = 800
	ChunkOverlap = 120

	//retrieval
	RetrievalK              = 5
	RetrievalMinScore       = 0.5
	SpanOverlapDedupeRatio  = 0.5 //same-doc results overlapping beyond this keep only the best
	ContextMaxExcerptChars  = 1200
	RetrievalRequestTimeout = 30 * time.Second

	//retry policy shared by embed and generation units
	RetryMaxAttempts   = 3
	RetryBaseInterval  = 500 * time.Millisecond
	RetryMaxInterval   = 10 * time.Second
	RetryJitterFactor  = 0.5
	ExternalCallBudget = 30 * time.Second

	//ingestion concurrency
	MaxChunkWorkers = 4

	//worker pool
	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	RunExecutionTimeout             = 5 * time.Minute

	//server timeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	ServerListenAddr = ":3000"

	//run requests buffer limit
	BufferLimit = 100

	//vectorDB
	ChunkCollectionName    = "sow-chunks"
	QdrantHost             = "localhost"
	QdrantGrpcPort         = 6334
	QdrantUseTLS           = false
	QdrantPoolSize         = 1
	QdrantKeepAliveTimeout = 30 * time.Second

	//llm
	GeminiModelName  = "gemini-2.5-flash-lite-preview-09-2025"
	ModelTemperature = float32(0.25)
	SystemContext    = "You are an expert delivery lead drafting structured Statements of Work. Keep the tone the user asks for and never invent client facts that are not in the provided context."

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis DB slots
	RedisRunStore   = 0
	RedisDraftStore = 1
	RedisHashIndex  = 2

	RedisRunStoreTTL   = 24 * time.Hour
	RedisDraftStoreTTL = 7 * 24 * time.Hour

	//databricks bulk ingest
	DatabricksStatementPath = "/api/2.0/sql/statements"
	DatabricksPollInterval  = 1 * time.Second
	DatabricksPollBudget    = 120 * time.Second
)

// LoadEnv reads a .env file if one is present. Missing file is not an error;
// credentials are optional configuration (absence selects the local
// embedding fallback).
func LoadEnv() {
	_ = godotenv.Load()
}

func OpenAIAPIKey() string    { return os.Getenv("OPENAI_API_KEY") }
func GeminiAPIKey() string    { return os.Getenv("GEMINI_API_KEY") }
func AuthToken() string       { return os.Getenv("API_AUTH_TOKEN") }
func NoAuthBypass() bool      { return os.Getenv("NO_AUTH_BYPASS") == "true" }
func RedisPassword() string   { return os.Getenv("REDIS_PASSWORD") }
func DatabricksHost() string  { return os.Getenv("DATABRICKS_HOST") }
func DatabricksToken() string { return os.Getenv("DATABRICKS_TOKEN") }
func WarehouseID() string     { return os.Getenv("DATABRICKS_WAREHOUSE_ID") }

// EmbedFallbackOnExhaustion controls whether a chunk whose external embedding
// retries are exhausted is re-embedded with the deterministic fallback
// instead of being marked failed. Default off: failed chunks are excluded
// from retrieval.
func EmbedFallbackOnExhaustion() bool {
	return os.Getenv("EMBED_FALLBACK_ON_EXHAUSTION") == "true"
}

// QdrantAddr returns host/port overrides, falling back to the compiled-in
// defaults when unset or unparsable.
func QdrantAddr() (string, int) {
	host := os.Getenv("QDRANT_HOST")
	port, err := strconv.Atoi(os.Getenv("QDRANT_PORT"))
	if host == "" || err != nil {
		return QdrantHost, QdrantGrpcPort
	}
	return host, port
}
