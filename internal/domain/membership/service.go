package membership

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ReceiptCleaner removes stored receipt files belonging to a member.
type ReceiptCleaner interface {
	DeleteForMember(ctx context.Context, memberID string) (int, error)
}

// RegistrationListener is told about every committed registration. It must not block.
type RegistrationListener interface {
	MemberRegistered(ctx context.Context, member Member)
}

type Service struct {
	repo     Repository
	clock    clockwork.Clock
	cleaner  ReceiptCleaner
	listener RegistrationListener
	log      logger.Logger
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithReceiptCleaner(c ReceiptCleaner) Option {
	return func(s *Service) { s.cleaner = c }
}

func WithRegistrationListener(l RegistrationListener) Option {
	return func(s *Service) { s.listener = l }
}

func NewService(repo Repository, log logger.Logger, opts ...Option) *Service {
	s := &Service{repo: repo, clock: clockwork.NewRealClock(), log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*Member, error) {
	draft, err := newMember(input)
	if err != nil {
		return nil, err
	}

	var created Member
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := ensureUnique(ctx, tx, draft.Email, draft.Phone, ""); err != nil {
			return err
		}

		draft.ID = uuid.NewString()
		draft.PaymentStatus = PaymentPending
		draft.SubscriptionStatus = SubscriptionPending
		if err := tx.Create(ctx, &draft); err != nil {
			return err
		}

		created = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.listener != nil {
		s.listener.MemberRegistered(ctx, created)
	}
	return &created, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Member, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Member, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Query = strings.TrimSpace(filter.Query)
	return s.repo.List(ctx, filter)
}

// EmailAvailable reports whether no member is registered under email.
func (s *Service) EmailAvailable(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return false, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrMemberNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Member, error) {
	var updated Member
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		member, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := applyUpdate(member, input); err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx, member.Email, member.Phone, member.ID); err != nil {
			return err
		}
		if err := tx.UpdateProfile(ctx, member); err != nil {
			return err
		}

		// An end date moved past now lifts a lapsed membership: back to active
		// when paid, otherwise back to awaiting payment.
		if member.SubscriptionStatus == SubscriptionExpired && member.EndDate.After(s.clock.Now()) {
			next := Status{Payment: member.PaymentStatus, Subscription: SubscriptionPending}
			if member.PaymentStatus == PaymentConfirmed {
				next.Subscription = SubscriptionActive
			}
			swapped, err := tx.SwapStatus(ctx, member.ID, member.Status(), next)
			if err != nil {
				return err
			}
			if !swapped {
				return ErrStatusConflict
			}
			member.SubscriptionStatus = next.Subscription
		}

		updated = *member
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the member and then its receipt files. Receipt cleanup
// failures are logged and do not fail the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrMemberNotFound
	}

	if s.cleaner != nil {
		removed, err := s.cleaner.DeleteForMember(ctx, id)
		if err != nil {
			s.log.InternalError("members.delete: receipt cleanup failed", err, "member_id", id)
		} else if removed > 0 {
			s.log.Debug("members.delete: receipts removed", "member_id", id, "count", removed)
		}
	}
	return nil
}

func newMember(input RegisterInput) (Member, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Member{}, &ValidationError{Field: "name", Message: "is required"}
	}

	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return Member{}, err
	}

	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return Member{}, &ValidationError{Field: "phone", Message: "is required"}
	}

	if input.DateOfBirth.IsZero() {
		return Member{}, &ValidationError{Field: "dob", Message: "is required"}
	}

	plan, err := ParsePlan(input.Plan)
	if err != nil {
		return Member{}, err
	}

	method := PaymentMethod(strings.ToLower(strings.TrimSpace(input.PaymentMethod)))
	if !method.Valid() {
		return Member{}, &ValidationError{Field: "paymentMethod", Message: "must be cash or online"}
	}

	if input.StartDate.IsZero() {
		return Member{}, &ValidationError{Field: "startDate", Message: "is required"}
	}
	start := input.StartDate.UTC()
	end := plan.EndDate(start)
	if input.EndDate != nil && !sameDay(input.EndDate.UTC(), end) {
		return Member{}, &ValidationError{
			Field:   "endDate",
			Message: fmt.Sprintf("does not match plan %s (expected %s)", plan, end.Format(time.DateOnly)),
		}
	}

	return Member{
		Name:          name,
		Email:         email,
		Phone:         phone,
		DateOfBirth:   input.DateOfBirth.UTC(),
		Plan:          plan,
		StartDate:     start,
		EndDate:       end,
		PaymentMethod: method,
	}, nil
}

func applyUpdate(member *Member, input UpdateInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return &ValidationError{Field: "name", Message: "is required"}
		}
		member.Name = name
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if err := validateEmail(email); err != nil {
			return err
		}
		member.Email = email
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if phone == "" {
			return &ValidationError{Field: "phone", Message: "is required"}
		}
		member.Phone = phone
	}

	recompute := false
	if input.Plan != nil {
		plan, err := ParsePlan(*input.Plan)
		if err != nil {
			return err
		}
		recompute = recompute || plan != member.Plan
		member.Plan = plan
	}
	if input.StartDate != nil {
		if input.StartDate.IsZero() {
			return &ValidationError{Field: "startDate", Message: "is required"}
		}
		start := input.StartDate.UTC()
		recompute = recompute || !start.Equal(member.StartDate)
		member.StartDate = start
	}

	switch {
	case input.EndDate != nil:
		member.EndDate = input.EndDate.UTC()
	case recompute:
		member.EndDate = member.Plan.EndDate(member.StartDate)
	}

	if !member.EndDate.After(member.StartDate) {
		return &ValidationError{Field: "endDate", Message: "must be after startDate"}
	}
	return nil
}

func ensureUnique(ctx context.Context, repo Repository, email, phone, selfID string) error {
	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return &ConflictError{Field: "email"}
	case err != nil && !errors.Is(err, ErrMemberNotFound):
		return err
	}

	existing, err = repo.GetByPhone(ctx, phone)
	switch {
	case err == nil && existing.ID != selfID:
		return &ConflictError{Field: "phone"}
	case err != nil && !errors.Is(err, ErrMemberNotFound):
		return err
	}
	return nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
