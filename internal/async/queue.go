package async

import (
	"context"
	"errors"
)

var (
	ErrPoolClosed   = errors.New("async: pool closed")
	ErrPollerClosed = errors.New("async: poller closed")
)

// Task is the smallest useful unit of work a Pool runs.
type Task func(ctx context.Context)

type Queue interface {
	Submit(ctx context.Context, task Task) error
	Shutdown(ctx context.Context)
}
