package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/data/store"
	"github.com/scopecraft/sowforge/internal/databricks"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/internal/handlers"
	"github.com/scopecraft/sowforge/internal/pipeline"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding/localEmbedding"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding/openaiEmbedding"
	"github.com/scopecraft/sowforge/internal/pipeline/llm/gemini"
	"github.com/scopecraft/sowforge/internal/pipeline/retrieval"
	"github.com/scopecraft/sowforge/internal/pipeline/sow"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB/memoryDB"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB/qdrantDB"
	"github.com/scopecraft/sowforge/internal/run"
	"github.com/scopecraft/sowforge/internal/server"
	"github.com/scopecraft/sowforge/internal/worker"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	config.LoadEnv()
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered run channel
	runChannel := make(chan runModel.WorkflowRun, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init run service and stores
	serviceConfig := run.ServiceConfig{
		RunChannel:        runChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}
	logger.Info("Starting run service")

	if redisRunStore := store.GetRedisRunStore(serviceContext); redisRunStore != nil {
		serviceConfig.RunStore = redisRunStore
	} else {
		logger.Error("Redis run store is offline, using in-memory store")
		serviceConfig.RunStore = store.InitInMemoryRunStore()
	}
	if redisDraftStore := store.GetRedisDraftStore(serviceContext); redisDraftStore != nil {
		serviceConfig.DraftStore = redisDraftStore
	} else {
		logger.Error("Redis draft store is offline, using in-memory store")
		serviceConfig.DraftStore = store.InitInMemoryDraftStore()
	}
	var hashIndex runModel.HashIndex
	if redisHashIndex := store.GetRedisHashIndex(serviceContext); redisHashIndex != nil {
		hashIndex = redisHashIndex
	} else {
		logger.Error("Redis hash index is offline, using in-memory index")
		hashIndex = store.InitInMemoryHashIndex()
	}
	runService := run.InitRunService(serviceConfig)

	//embedding strategy: external when a credential exists, deterministic
	//local fallback otherwise
	fallbackEmbedder := localEmbedding.New(config.EmbeddingDimension)
	var embedder embedding.Embedder = openaiEmbedding.GetOpenAIEmbeddingClient(serviceContext, config.OpenAIAPIKey(), config.EmbeddingDimension)
	if embedder == nil {
		logger.Info("Using deterministic local embedding strategy")
		embedder = fallbackEmbedder
	}

	var chunkStore vectorDB.Store = qdrantDB.GetQdrantStore(serviceContext, config.EmbeddingDimension)
	if chunkStore == nil {
		logger.Error("Qdrant is offline, using in-memory vector store")
		chunkStore = memoryDB.NewStore()
	}
	if err := chunkStore.EnsureReady(serviceContext, embedder.Strategy(), embedder.Dimension()); err != nil {
		logger.Error("Vector store rejected the embedding strategy. Shutting down.", "error", err)
		return
	}

	llmProvider := gemini.GetGeminiClient(serviceContext, config.GeminiModelName, config.GeminiAPIKey())
	if llmProvider == nil {
		logger.Warn("No generation provider configured, sow runs will fail until one is")
	}

	retrievalService := retrieval.NewService(embedder, chunkStore)
	generator := sow.NewGenerator(llmProvider)

	var fetcher pipeline.BatchFetcher
	if dbx := databricks.NewClient(); dbx != nil {
		fetcher = dbx
	} else {
		logger.Info("Databricks source not configured")
	}

	pipelineService := pipeline.NewService(
		embedder,
		fallbackEmbedder,
		chunkStore,
		retrievalService,
		generator,
		hashIndex,
		serviceConfig.DraftStore,
		fetcher,
	)

	handlers.InitRunHandler(runService)

	//init worker pool
	worker.InitServices(runService, pipelineService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
