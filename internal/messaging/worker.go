package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 20
	defaultBatchSize     = 5
	deleteTimeoutSeconds = 5
	maxReceiveBackoff    = 5 * time.Second
)

// ErrUndecodable marks a queued body that can never be processed.
var ErrUndecodable = errors.New("messaging: undecodable message")

// Worker consumes inbound messages from a Queue and routes them.
type Worker struct {
	router *Router
	queue  Queue
	jobs   JobUpdater
	logger *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customises worker behaviour.
type WorkerOption func(*workerConfig)

func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait. Zero is allowed.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds >= 0 {
			cfg.receiveWaitSecs = seconds
		}
	}
}

func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.receiveBatchSize = size
		}
	}
}

// NewWorker builds a worker. jobs may be nil when job tracking is disabled.
func NewWorker(router *Router, queue Queue, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if router == nil {
		panic("messaging: router cannot be nil")
	}
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{router: router, queue: queue, jobs: jobs, logger: logger, cfg: cfg}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("inbound worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("inbound worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive inbound messages", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxReceiveBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			if err := w.Process(ctx, msg.Body); err != nil {
				w.logger.Warn("inbound message not processed", "msg_id", msg.ID, "error", err)
			}
			w.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

// Process decodes one queued body, routes it and finalises its job record.
// Undecodable bodies return ErrUndecodable; delivery failures return the
// router's error so serverless consumers can retry.
func (w *Worker) Process(ctx context.Context, body string) error {
	msg, err := DecodeMessage(body)
	if err != nil {
		w.logger.Error("failed to decode inbound message", "error", err)
		return errors.Join(ErrUndecodable, err)
	}
	w.logger.Info("worker processing inbound message", "job_id", msg.JobID, "sender", msg.Sender)

	res, routeErr := w.router.Route(ctx, msg)
	if w.jobs != nil && msg.JobID != "" {
		var err error
		if routeErr != nil {
			err = w.jobs.MarkFailed(ctx, msg.JobID, routeErr.Error())
		} else {
			err = w.jobs.MarkCompleted(ctx, msg.JobID, res.Status, res.Reply)
		}
		if err != nil {
			w.logger.Error("failed to update job", "job_id", msg.JobID, "error", err)
		}
	}
	return routeErr
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound message", "error", err)
	}
}
