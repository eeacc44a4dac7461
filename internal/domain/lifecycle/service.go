package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/botio91514/gym-backend/internal/notify"
	"github.com/botio91514/gym-backend/internal/receipt"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "github.com/botio91514/gym-backend/internal/domain/lifecycle"
	maxSwapAttempts = 3
)

type ReceiptGenerator interface {
	Generate(ctx context.Context, member membership.Member) (*receipt.Receipt, error)
}

type Config struct {
	ReminderWindow time.Duration
	// AsyncConfirmation sends the payment-confirmed email in the background
	// instead of inside the approve call.
	AsyncConfirmation bool
	// PublicBaseURL turns relative receipt paths into links usable from email.
	PublicBaseURL string
}

type Service struct {
	members  membership.Repository
	receipts ReceiptGenerator
	sender   notify.Sender
	queue    Queue
	clock    clockwork.Clock
	log      logger.Logger
	tracer   trace.Tracer
	cfg      Config
	issuing  memberLocks
}

func NewService(members membership.Repository, receipts ReceiptGenerator, sender notify.Sender, queue Queue, clk clockwork.Clock, log logger.Logger, cfg Config) *Service {
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = DefaultReminderWindow
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Service{
		members:  members,
		receipts: receipts,
		sender:   sender,
		queue:    queue,
		clock:    clk,
		log:      log,
		tracer:   otel.Tracer(tracerName),
		cfg:      cfg,
	}
}

// Approve confirms a pending payment, issues a receipt and notifies the member.
// Approving a member that is confirmed and holds a receipt is a no-op that
// returns the stored state. A confirmed member without a receipt, left behind by
// a failed receipt step, gets the receipt and the confirmation email on retry.
// The status change is committed before any side effect and is never rolled back:
// a receipt failure is returned as *receipt.GenerationError alongside the result.
func (s *Service) Approve(ctx context.Context, memberID string) (*ApprovalResult, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.approve", trace.WithAttributes(attribute.String("member.id", memberID)))
	defer span.End()
	log := s.log.WithContext(ctx).With("member_id", memberID)

	member, already, err := s.confirm(ctx, memberID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return nil, err
	}
	if already && member.ReceiptPath != "" {
		span.SetAttributes(attribute.Bool("lifecycle.already_confirmed", true))
		log.Info("lifecycle: approve skipped, already confirmed")
		return &ApprovalResult{Member: *member, AlreadyConfirmed: true}, nil
	}
	if already {
		log.Info("lifecycle: resuming approval, receipt missing")
	} else {
		log.Info("lifecycle: payment confirmed", "subscription_status", member.SubscriptionStatus)
	}

	unlock := s.issuing.lock(memberID)
	defer unlock()

	// Another approval may have issued the receipt while this one waited.
	member, err = s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.ReceiptPath != "" {
		return &ApprovalResult{Member: *member, AlreadyConfirmed: true}, nil
	}

	result := &ApprovalResult{Member: *member, Resumed: already}

	rcpt, err := s.receipts.Generate(ctx, *member)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "receipt failed")
		log.InternalError("lifecycle: receipt generation failed", err)
		return result, err
	}
	result.Receipt = rcpt

	if err := s.members.SetReceipt(ctx, member.ID, rcpt.URL); err != nil {
		span.RecordError(err)
		log.InternalError("lifecycle: store receipt reference failed", err, "receipt", rcpt.URL)
		return result, fmt.Errorf("store receipt reference: %w", err)
	}
	result.Member.ReceiptPath = rcpt.URL

	data := memberData(result.Member)
	data.ReceiptURL = absoluteURL(s.cfg.PublicBaseURL, rcpt.URL)
	to := recipientOf(result.Member)

	if s.cfg.AsyncConfirmation && s.queue != nil {
		result.NotificationQueued = s.queue.Enqueue(to, notify.KindPaymentConfirmed, data)
		return result, nil
	}

	if _, err := s.sender.Send(ctx, to, notify.KindPaymentConfirmed, data); err != nil {
		result.NotificationErr = err
		log.BusinessError("lifecycle: confirmation email not delivered", err)
	}
	return result, nil
}

// confirm moves the member to confirmed with a compare-and-swap on the status
// pair, retrying when another writer got in first.
func (s *Service) confirm(ctx context.Context, memberID string) (*membership.Member, bool, error) {
	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		member, err := s.members.GetByID(ctx, memberID)
		if err != nil {
			return nil, false, err
		}
		if member.PaymentStatus == membership.PaymentConfirmed {
			return member, true, nil
		}

		next := membership.Status{
			Payment:      membership.PaymentConfirmed,
			Subscription: membership.SubscriptionActive,
		}
		if member.EndDate.Before(s.clock.Now()) {
			next.Subscription = membership.SubscriptionExpired
		}

		swapped, err := s.members.SwapStatus(ctx, member.ID, member.Status(), next)
		if err != nil {
			return nil, false, err
		}
		if swapped {
			member.PaymentStatus = next.Payment
			member.SubscriptionStatus = next.Subscription
			return member, false, nil
		}
	}
	return nil, false, membership.ErrStatusConflict
}

// memberLocks serialises receipt issuance per member within this process.
type memberLocks struct {
	mu   sync.Mutex
	held map[string]*memberLock
}

type memberLock struct {
	mu   sync.Mutex
	refs int
}

func (l *memberLocks) lock(id string) func() {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*memberLock)
	}
	ml, ok := l.held[id]
	if !ok {
		ml = &memberLock{}
		l.held[id] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()
	return func() {
		ml.mu.Unlock()
		l.mu.Lock()
		if ml.refs--; ml.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}

// NotifyExpired sends the renewal message for an admin. Blank recipient fields
// fall back to the member's own.
func (s *Service) NotifyExpired(ctx context.Context, memberID string, to notify.Recipient) (*notify.DeliveryReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.notify_expired", trace.WithAttributes(attribute.String("member.id", memberID)))
	defer span.End()

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(to.Email) == "" {
		to.Email = member.Email
	}
	if strings.TrimSpace(to.Name) == "" {
		to.Name = member.Name
	}

	data := memberData(*member)
	data.MemberName = to.Name
	data.Offers = renewalOffers()

	delivery, err := s.sender.Send(ctx, to, notify.KindExpiredReengagement, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return nil, err
	}
	return delivery, nil
}

// RunPass performs one expiration pass followed by one reminder pass.
func (s *Service) RunPass(ctx context.Context) (PassReport, error) {
	now := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, "lifecycle.pass")
	defer span.End()

	report := PassReport{StartedAt: now}
	expired, expireErr := s.ExpirePass(ctx, now)
	report.add(expired)
	reminded, remindErr := s.ReminderPass(ctx, now)
	report.add(reminded)

	span.SetAttributes(
		attribute.Int("lifecycle.expired", report.Expired),
		attribute.Int("lifecycle.reminded", report.Reminded),
		attribute.Int("lifecycle.conflicts", report.Conflicts),
		attribute.Int("lifecycle.failures", report.Failures+report.NotifyFailures),
	)

	if err := errors.Join(expireErr, remindErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pass failed")
		return report, err
	}
	return report, nil
}

// ExpirePass expires every member whose end date is before now. Each member
// is visited once; a lost status race is counted and left for the next pass.
func (s *Service) ExpirePass(ctx context.Context, now time.Time) (PassReport, error) {
	report := PassReport{StartedAt: now}
	due, err := s.members.ListDueForExpiry(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list due for expiry: %w", err)
	}

	for _, m := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !NeedsExpiry(m, now) {
			report.Skipped++
			continue
		}

		log := s.log.WithContext(ctx).With("member_id", m.ID)
		next := membership.Status{Payment: m.PaymentStatus, Subscription: membership.SubscriptionExpired}
		swapped, err := s.members.SwapStatus(ctx, m.ID, m.Status(), next)
		if err != nil {
			report.Failures++
			log.InternalError("lifecycle: expire failed", err)
			continue
		}
		if !swapped {
			report.Conflicts++
			log.Info("lifecycle: expire skipped, status changed concurrently")
			continue
		}

		report.Expired++
		m.SubscriptionStatus = membership.SubscriptionExpired
		log.Info("lifecycle: membership expired", "end_date", m.EndDate)

		if _, err := s.sender.Send(ctx, recipientOf(m), notify.KindMembershipExpired, memberData(m)); err != nil {
			report.NotifyFailures++
		}
	}
	return report, nil
}

// ReminderPass sends at most one expiring-soon reminder per member and end
// date. A reminder that could not be delivered is released for the next pass.
func (s *Service) ReminderPass(ctx context.Context, now time.Time) (PassReport, error) {
	report := PassReport{StartedAt: now}
	window := s.cfg.ReminderWindow
	due, err := s.members.ListDueForReminder(ctx, now, now.Add(window))
	if err != nil {
		return report, fmt.Errorf("list due for reminder: %w", err)
	}

	for _, m := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !NeedsReminder(m, now, window) {
			report.Skipped++
			continue
		}

		log := s.log.WithContext(ctx).With("member_id", m.ID)
		claimed, err := s.members.ClaimReminder(ctx, m.ID, m.EndDate)
		if err != nil {
			report.Failures++
			log.InternalError("lifecycle: claim reminder failed", err)
			continue
		}
		if !claimed {
			report.Skipped++
			continue
		}

		data := memberData(m)
		data.DaysLeft = DaysLeft(m.EndDate, now)
		if _, err := s.sender.Send(ctx, recipientOf(m), notify.KindExpiringSoon, data); err != nil {
			report.NotifyFailures++
			if rerr := s.members.ReleaseReminder(context.WithoutCancel(ctx), m.ID, m.EndDate); rerr != nil {
				log.InternalError("lifecycle: release reminder failed", rerr)
			}
			continue
		}
		report.Reminded++
	}
	return report, nil
}
