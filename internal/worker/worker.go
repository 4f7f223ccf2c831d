// Package worker runs background task processing.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
	"github.com/custodia-labs/audita-core/internal/core/ports/driving"
)

// Worker processes tasks from the task queue: re-indexing documents and
// running audits. The unit of work is one document; cancellation between
// documents is handled by the services themselves.
type Worker struct {
	taskQueue driven.TaskQueue
	corpus    driving.CorpusService
	audit     driving.AuditService
	index     driven.VectorIndex
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Corpus         driving.CorpusService
	Audit          driving.AuditService
	Index          driven.VectorIndex
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		corpus:         cfg.Corpus,
		audit:          cfg.Audit,
		index:          cfg.Index,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeIndexDocument:
		err = w.handleIndexDocument(ctx, task)
	case domain.TaskTypeAuditDocument:
		err = w.handleAuditDocument(ctx, task)
	case domain.TaskTypeAuditAll:
		err = w.handleAuditAll(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		// Nack the task so it can be retried
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleIndexDocument re-indexes one document from its stored chunks.
// Used after an index restart or a detected inconsistency; the chunks and
// embeddings are already persisted, only the index entries are rebuilt.
func (w *Worker) handleIndexDocument(ctx context.Context, task *domain.Task) error {
	documentID := task.DocumentID()
	if documentID == "" {
		return fmt.Errorf("document_id not found in task payload")
	}

	dwc, err := w.corpus.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document %s: %w", documentID, err)
	}

	embedded := make([]*domain.Chunk, 0, len(dwc.Chunks))
	for _, chunk := range dwc.Chunks {
		if len(chunk.Embedding) > 0 {
			embedded = append(embedded, chunk)
		}
	}
	if err := w.index.ReplaceDocument(ctx, documentID, embedded); err != nil {
		return fmt.Errorf("replace index entries for %s: %w", documentID, err)
	}

	return nil
}

// handleAuditDocument handles an audit_document task.
func (w *Worker) handleAuditDocument(ctx context.Context, task *domain.Task) error {
	documentID := task.DocumentID()
	if documentID == "" {
		return fmt.Errorf("document_id not found in task payload")
	}

	report, err := w.audit.AuditDocument(ctx, documentID)
	if err != nil {
		return err
	}

	w.logger.Info("audit completed",
		"document_id", documentID,
		"overall_score", report.OverallScore,
	)
	return nil
}

// handleAuditAll handles an audit_all task.
// Per-document failures are isolated inside AuditAll; the task succeeds
// as long as the batch itself ran.
func (w *Worker) handleAuditAll(ctx context.Context, task *domain.Task) error {
	reports, err := w.audit.AuditAll(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("corpus audit completed", "reports", len(reports))
	return nil
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
