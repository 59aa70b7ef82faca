package worker

import (
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

type WorkQueue struct {
	jobs    chan *models.ScrapeJob
	workers []*Worker
}

func NewWorkQueue(numWorkers int, crawler Crawler, logger *zap.Logger) *WorkQueue {
	wq := &WorkQueue{
		jobs:    make(chan *models.ScrapeJob, 100),
		workers: make([]*Worker, numWorkers),
	}
	for i := 0; i < numWorkers; i++ {
		wq.workers[i] = NewWorker(wq.jobs, crawler, logger)
		wq.workers[i].Start()
	}
	return wq
}

func (wq *WorkQueue) Enqueue(job *models.ScrapeJob) {
	wq.jobs <- job
}

func (wq *WorkQueue) Stop() {
	close(wq.jobs)
	for _, w := range wq.workers {
		w.Stop()
	}
}
