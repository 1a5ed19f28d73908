package tasks

import "context"

// PoolInterface runs a batch of tasks to completion.
// Used by the pipeline for source fetches and preview enrichment.
// Example usage:
//
//	pool := NewPool(5, 30*time.Second)
//	errs := pool.Run(ctx, []TaskInterface{NewFetchSourceTask(adapter, "alice", 0)})
type PoolInterface interface {
	Run(ctx context.Context, tasks []TaskInterface) []error
}
