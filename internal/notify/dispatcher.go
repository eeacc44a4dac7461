package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/botio91514/gym-backend/internal/retry"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/botio91514/gym-backend/internal/notify"

type DeliveryReceipt struct {
	Recipient Recipient
	Kind      Kind
	Attempts  int
	MessageID string
}

// Sender is satisfied by Dispatcher.
type Sender interface {
	Send(ctx context.Context, to Recipient, kind Kind, data Data) (*DeliveryReceipt, error)
}

type Dispatcher struct {
	factory TransportFactory
	policy  retry.Policy
	clock   clockwork.Clock
	log     logger.Logger
	tracer  trace.Tracer
}

type Option func(*Dispatcher)

func WithPolicy(p retry.Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

func NewDispatcher(factory TransportFactory, log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		factory: factory,
		policy:  retry.DefaultPolicy(),
		clock:   clockwork.NewRealClock(),
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send renders and delivers one notification. Each failed attempt is logged as
// a TransientDeliveryError; when the policy is exhausted a TerminalDeliveryError
// is returned. Delivery is at-least-once: a retry after an ambiguous failure can
// produce a duplicate message.
func (d *Dispatcher) Send(ctx context.Context, to Recipient, kind Kind, data Data) (*DeliveryReceipt, error) {
	ctx, span := d.tracer.Start(ctx, "notify.send", trace.WithAttributes(
		attribute.String("notify.kind", string(kind)),
	))
	defer span.End()

	to.Email = strings.TrimSpace(to.Email)
	if _, err := mail.ParseAddress(to.Email); err != nil {
		span.SetStatus(codes.Error, "invalid recipient")
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, to.Email)
	}

	msg, err := Render(kind, data)
	if err != nil {
		span.SetStatus(codes.Error, "render failed")
		return nil, err
	}
	env := Envelope{To: to, Subject: msg.Subject, HTML: msg.HTML}
	log := d.log.WithContext(ctx).With("kind", kind, "to", to.Email)

	var messageID string
	attempts, err := d.policy.Do(ctx, d.clock, func(ctx context.Context, attempt int) error {
		id, err := d.deliverOnce(ctx, env)
		if err != nil {
			transient := &TransientDeliveryError{Kind: kind, Recipient: to.Email, Attempt: attempt, Err: err}
			span.AddEvent("attempt failed", trace.WithAttributes(
				attribute.Int("notify.attempt", attempt),
				attribute.String("error", err.Error()),
			))
			log.BusinessError("notify: delivery attempt failed", transient, "attempt", attempt)
			return transient
		}
		messageID = id
		return nil
	})
	span.SetAttributes(attribute.Int("notify.attempts", attempts))

	if err != nil {
		terminal := &TerminalDeliveryError{Kind: kind, Recipient: to.Email, Attempts: attempts, Err: err}
		span.RecordError(terminal)
		span.SetStatus(codes.Error, "delivery failed")
		log.InternalError("notify: delivery failed", terminal, "attempts", attempts)
		return nil, terminal
	}

	log.Info("notify: delivered", "attempts", attempts, "message_id", messageID)
	return &DeliveryReceipt{Recipient: to, Kind: kind, Attempts: attempts, MessageID: messageID}, nil
}

func (d *Dispatcher) deliverOnce(ctx context.Context, env Envelope) (string, error) {
	transport, err := d.factory(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := transport.Close(); cerr != nil {
			d.log.Debug("notify: transport close failed", "err", cerr)
		}
	}()
	return transport.Deliver(ctx, env)
}
