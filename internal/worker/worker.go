package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/metrics"
	"github.com/scopecraft/sowforge/internal/pipeline"
	"github.com/scopecraft/sowforge/internal/run"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

var (
	_runService        *run.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	logger             *logger_i.Logger
	_pipelineService   pipeline.Service
	minWorkerCount     = config.MinWorkerCount
)

func InitServices(runService *run.Service, pipelineService pipeline.Service) {
	_runService = runService
	_pipelineService = pipelineService
	dispatcherChannel = runService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool")
	go dispatcher()
}

func dispatcher() {
	createWorker()
	logger.Info("Dispatcher started")
	for range dispatcherChannel {
		if atomic.LoadInt64(&currentWorkerCount) < config.MaxWorkerCount {
			logger.Info("Creating new worker", "WorkerCount :", currentWorkerCount)
			createWorker()
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	go worker()
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	logger.Info("Created new worker")
}

func worker() {
	for {
		select {
		case currentRun := <-_runService.RunChannel:
			executeRun(currentRun)
			metrics.DecrementRunsInQueue()

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")
			return

		case <-time.After(config.IdleWorkerTimeout):
			// Worker was idle for too long, retire unless the pool is at its floor
			if retireIfSurplus() {
				return
			}
		}
	}
}
