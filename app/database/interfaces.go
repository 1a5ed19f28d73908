package database

import (
	"context"
)

// RunRepositoryInterface is the run history surface shared by the runner
// (Insert) and the API (ListRecent).
type RunRepositoryInterface interface {
	Insert(ctx context.Context, run Run) error
	ListRecent(ctx context.Context, limit int) ([]Run, error)
}

var _ RunRepositoryInterface = (*RunRepository)(nil)
