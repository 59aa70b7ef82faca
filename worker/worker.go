package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

type Crawler interface {
	Scrape(ctx context.Context, job *models.ScrapeJob) error
}

type Worker struct {
	jobs    <-chan *models.ScrapeJob
	crawler Crawler
	logger  *zap.Logger
	stop    chan struct{}
}

func NewWorker(jobs <-chan *models.ScrapeJob, crawler Crawler, logger *zap.Logger) *Worker {
	return &Worker{
		jobs:    jobs,
		crawler: crawler,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			select {
			case job, ok := <-w.jobs:
				if !ok {
					return
				}
				if err := w.crawler.Scrape(context.Background(), job); err != nil {
					w.logger.Error("worker failed to process job", zap.String("job_id", job.ID), zap.Error(err))
					continue
				}
				w.logger.Info("worker processed job", zap.String("job_id", job.ID))
			case <-w.stop:
				return
			}
		}
	}()
}

func (w *Worker) Stop() {
	close(w.stop)
}
