package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultTaskTimeout = 30 * time.Second
	maxRetryDelay      = 30 * time.Second
)

var _ PoolInterface = (*Pool)(nil)

// Pool runs a batch of independent tasks on a fixed number of workers and
// waits for all of them.
type Pool struct {
	workerCount int
	taskTimeout time.Duration
	retryDelay  func(retry int) time.Duration
}

func NewPool(workerCount int, taskTimeout time.Duration) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &Pool{
		workerCount: workerCount,
		taskTimeout: taskTimeout,
		retryDelay:  backoff,
	}
}

// Run executes every task and returns their final errors, indexed like tasks.
func (p *Pool) Run(ctx context.Context, tasks []TaskInterface) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	queue := make(chan int, len(tasks))
	for i := range tasks {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for id := range min(p.workerCount, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				errs[i] = p.executeTask(ctx, id, tasks[i])
			}
		}()
	}
	wg.Wait()

	return errs
}

func (p *Pool) executeTask(ctx context.Context, workerID int, task TaskInterface) error {
	for {
		task.Start()

		taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
		err := task.Execute(taskCtx)
		cancel()

		if err == nil {
			slog.Debug("Task completed", "worker_id", workerID, "type", string(task.GetType()), "subject", task.GetSubject(), "duration", task.GetDuration().String())
			return nil
		}

		slog.Warn("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "error", err)

		if !task.CanRetry() || ctx.Err() != nil {
			return err
		}

		task.IncrementRetryCount()
		delay := p.retryDelay(task.GetRetryCount())

		slog.Debug("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
	}
}

func backoff(retry int) time.Duration {
	delay := time.Duration(1<<uint(retry-1)) * time.Second
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
