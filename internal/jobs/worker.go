package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/logging"
)

// JobProcessor drains whatever work is ready when it is called.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls a JobProcessor once on start and then every pollInterval,
// until its context ends or Stop is called.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	logger       *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewWorker(processor JobProcessor, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		logger:       logging.OrDefault(logger),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start blocks until the worker stops. It must be called at most once.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("worker started", "poll_interval", w.pollInterval)
	w.poll(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", "reason", "context cancelled")
			return
		case <-w.stop:
			w.logger.Info("worker stopped", "reason", "stop signal")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("error processing jobs", "error", err)
	}
}

// Stop signals the loop and waits for the in-flight poll to finish. It is
// safe to call more than once, and after the context has already ended.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// Done is closed once Start has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
