package httpapi

import (
	"context"
	"io"
	"log"
	"sync"

	"rastersalvage/internal/batch"
	"rastersalvage/internal/httpapi/handlers"
)

type batchRunner interface {
	Run(ctx context.Context, bucket string, keys []string) (batch.Summary, error)
}

// BatchTrigger runs at most one background batch at a time. Batches run
// under the context given to NewBatchTrigger, not the request's.
type BatchTrigger struct {
	ctx    context.Context
	runner batchRunner
	logger *log.Logger

	mu          sync.Mutex
	wg          sync.WaitGroup
	running     bool
	bucket      string
	lastSummary *batch.Summary
	lastError   error
}

func NewBatchTrigger(ctx context.Context, runner batchRunner, logger *log.Logger) *BatchTrigger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &BatchTrigger{ctx: ctx, runner: runner, logger: logger}
}

func (bt *BatchTrigger) Trigger(bucket string, keys []string) bool {
	bt.mu.Lock()
	if bt.running {
		bt.mu.Unlock()
		return false
	}
	bt.running = true
	bt.bucket = bucket
	bt.wg.Add(1)
	bt.mu.Unlock()

	go func() {
		defer bt.wg.Done()
		summary, err := bt.runner.Run(bt.ctx, bucket, keys)

		bt.mu.Lock()
		bt.running = false
		bt.lastSummary = &summary
		bt.lastError = err
		bt.mu.Unlock()

		if err != nil {
			bt.logger.Printf("[batch] background batch in %s finished with errors: %v", bucket, err)
		}
	}()
	return true
}

// Wait blocks until the running batch, if any, returns.
func (bt *BatchTrigger) Wait() {
	bt.wg.Wait()
}

func (bt *BatchTrigger) Status() handlers.BatchStatus {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	errStr := ""
	if bt.lastError != nil {
		errStr = bt.lastError.Error()
	}
	return handlers.BatchStatus{
		Running:     bt.running,
		Bucket:      bt.bucket,
		LastSummary: bt.lastSummary,
		LastError:   errStr,
	}
}
