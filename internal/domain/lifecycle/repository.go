package lifecycle

import (
	"context"
	"time"
)

type RunStore interface {
	LastSuccess(ctx context.Context, job string) (time.Time, bool, error)
	RecordSuccess(ctx context.Context, job string, at time.Time) error
}
