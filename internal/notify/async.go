package notify

import (
	"context"
	"sync"
	"time"

	"github.com/botio91514/gym-backend/pkg/logger"
)

// DefaultSendTimeout bounds a background send including all retry waits.
const DefaultSendTimeout = 2 * time.Minute

// Queue runs sends in the background so callers are not blocked by delivery
// retries. Sends use their own context so request cancellation does not abort
// them. Close waits for in-flight sends.
type Queue struct {
	sender  Sender
	log     logger.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(sender Sender, log logger.Logger, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Queue{sender: sender, log: log, timeout: timeout}
}

// Enqueue reports false when the queue is already closed.
func (q *Queue) Enqueue(to Recipient, kind Kind, data Data) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.Warn("notify: queue closed, dropping message", "kind", kind, "to", to.Email)
		return false
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()
		// Dispatcher already logs terminal failures.
		_, _ = q.sender.Send(ctx, to, kind, data)
	}()
	return true
}

func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
