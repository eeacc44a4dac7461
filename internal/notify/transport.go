package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/botio91514/gym-backend/pkg/logger"
)

type Envelope struct {
	To      Recipient
	Subject string
	HTML    string
}

// Transport delivers a single message. A new Transport is built for every
// attempt and closed afterwards.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) (messageID string, err error)
	Close() error
}

type TransportFactory func(ctx context.Context) (Transport, error)

// LogTransport writes messages to the logger instead of sending them.
type LogTransport struct {
	log logger.Logger
	seq *atomic.Uint64
}

func LogTransportFactory(log logger.Logger) TransportFactory {
	seq := &atomic.Uint64{}
	return func(context.Context) (Transport, error) {
		return &LogTransport{log: log, seq: seq}, nil
	}
}

func (t *LogTransport) Deliver(ctx context.Context, env Envelope) (string, error) {
	id := fmt.Sprintf("log-%d-%d", time.Now().UnixMilli(), t.seq.Add(1))
	t.log.Info("notify: message logged",
		"message_id", id,
		"to", env.To.Email,
		"subject", env.Subject,
		"bytes", len(env.HTML),
	)
	return id, nil
}

func (t *LogTransport) Close() error {
	return nil
}
