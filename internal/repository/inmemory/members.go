package inmemory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
)

// MemberStore keeps members in memory. Every call, and every Transaction as a
// whole, runs under one mutex, so check-then-insert sequences are atomic.
type MemberStore struct {
	mu      *sync.Mutex
	members map[string]membershipdomain.Member
	inTx    bool
	now     func() time.Time
}

func NewMemberStore() *MemberStore {
	return &MemberStore{
		mu:      &sync.Mutex{},
		members: make(map[string]membershipdomain.Member),
		now:     time.Now,
	}
}

func (s *MemberStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Transaction runs fn against a copy of the data and publishes it only when fn succeeds.
func (s *MemberStore) Transaction(ctx context.Context, fn func(membershipdomain.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view := &MemberStore{
		mu:      s.mu,
		members: maps.Clone(s.members),
		inTx:    true,
		now:     s.now,
	}
	if err := fn(view); err != nil {
		return err
	}
	s.members = view.members
	return nil
}

func (s *MemberStore) Create(ctx context.Context, member *membershipdomain.Member) error {
	defer s.lock()()

	if _, exists := s.members[member.ID]; exists {
		return &membershipdomain.ConflictError{}
	}
	for _, existing := range s.members {
		if existing.Email == member.Email {
			return &membershipdomain.ConflictError{Field: "email"}
		}
		if existing.Phone == member.Phone {
			return &membershipdomain.ConflictError{Field: "phone"}
		}
	}

	now := s.now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	s.members[member.ID] = cloneMember(*member)
	return nil
}

func (s *MemberStore) GetByID(ctx context.Context, id string) (*membershipdomain.Member, error) {
	defer s.lock()()

	member, ok := s.members[id]
	if !ok {
		return nil, membershipdomain.ErrMemberNotFound
	}
	out := cloneMember(member)
	return &out, nil
}

func (s *MemberStore) GetByEmail(ctx context.Context, email string) (*membershipdomain.Member, error) {
	return s.findOne(func(m membershipdomain.Member) bool { return m.Email == email })
}

func (s *MemberStore) GetByPhone(ctx context.Context, phone string) (*membershipdomain.Member, error) {
	return s.findOne(func(m membershipdomain.Member) bool { return m.Phone == phone })
}

func (s *MemberStore) findOne(match func(membershipdomain.Member) bool) (*membershipdomain.Member, error) {
	defer s.lock()()

	for _, member := range s.members {
		if match(member) {
			out := cloneMember(member)
			return &out, nil
		}
	}
	return nil, membershipdomain.ErrMemberNotFound
}

func (s *MemberStore) List(ctx context.Context, filter membershipdomain.ListFilter) ([]membershipdomain.Member, int64, error) {
	defer s.lock()()

	query := strings.ToLower(filter.Query)
	matched := make([]membershipdomain.Member, 0, len(s.members))
	for _, member := range s.members {
		if filter.PaymentStatus != "" && member.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.SubscriptionStatus != "" && member.SubscriptionStatus != filter.SubscriptionStatus {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(member.Name), query) &&
			!strings.Contains(member.Email, query) &&
			!strings.Contains(member.Phone, query) {
			continue
		}
		matched = append(matched, cloneMember(member))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []membershipdomain.Member{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *MemberStore) UpdateProfile(ctx context.Context, member *membershipdomain.Member) error {
	defer s.lock()()

	current, ok := s.members[member.ID]
	if !ok {
		return membershipdomain.ErrMemberNotFound
	}
	for id, other := range s.members {
		if id == member.ID {
			continue
		}
		if other.Email == member.Email {
			return &membershipdomain.ConflictError{Field: "email"}
		}
		if other.Phone == member.Phone {
			return &membershipdomain.ConflictError{Field: "phone"}
		}
	}

	current.Name = member.Name
	current.Email = member.Email
	current.Phone = member.Phone
	current.Plan = member.Plan
	current.StartDate = member.StartDate
	current.EndDate = member.EndDate
	current.UpdatedAt = s.now().UTC()
	s.members[member.ID] = current
	member.UpdatedAt = current.UpdatedAt
	return nil
}

func (s *MemberStore) Delete(ctx context.Context, id string) (bool, error) {
	defer s.lock()()

	if _, ok := s.members[id]; !ok {
		return false, nil
	}
	delete(s.members, id)
	return true, nil
}

func (s *MemberStore) SwapStatus(ctx context.Context, id string, expected, next membershipdomain.Status) (bool, error) {
	defer s.lock()()

	member, ok := s.members[id]
	if !ok || member.Status() != expected {
		return false, nil
	}
	member.PaymentStatus = next.Payment
	member.SubscriptionStatus = next.Subscription
	member.UpdatedAt = s.now().UTC()
	s.members[id] = member
	return true, nil
}

func (s *MemberStore) SetReceipt(ctx context.Context, id, path string) error {
	defer s.lock()()

	member, ok := s.members[id]
	if !ok {
		return membershipdomain.ErrMemberNotFound
	}
	member.ReceiptPath = path
	member.UpdatedAt = s.now().UTC()
	s.members[id] = member
	return nil
}

func (s *MemberStore) ListDueForExpiry(ctx context.Context, now time.Time) ([]membershipdomain.Member, error) {
	return s.collect(func(m membershipdomain.Member) bool {
		return m.EndDate.Before(now) && m.SubscriptionStatus != membershipdomain.SubscriptionExpired
	}), nil
}

func (s *MemberStore) ListDueForReminder(ctx context.Context, from, to time.Time) ([]membershipdomain.Member, error) {
	return s.collect(func(m membershipdomain.Member) bool {
		return m.EndDate.After(from) && m.EndDate.Before(to) && m.SubscriptionStatus == membershipdomain.SubscriptionActive
	}), nil
}

func (s *MemberStore) collect(match func(membershipdomain.Member) bool) []membershipdomain.Member {
	defer s.lock()()

	out := make([]membershipdomain.Member, 0)
	for _, member := range s.members {
		if match(member) {
			out = append(out, cloneMember(member))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out
}

func (s *MemberStore) ClaimReminder(ctx context.Context, id string, endDate time.Time) (bool, error) {
	defer s.lock()()

	member, ok := s.members[id]
	if !ok {
		return false, nil
	}
	if member.ReminderSentFor != nil && member.ReminderSentFor.Equal(endDate) {
		return false, nil
	}
	marker := endDate
	member.ReminderSentFor = &marker
	s.members[id] = member
	return true, nil
}

func (s *MemberStore) ReleaseReminder(ctx context.Context, id string, endDate time.Time) error {
	defer s.lock()()

	member, ok := s.members[id]
	if !ok {
		return nil
	}
	if member.ReminderSentFor != nil && member.ReminderSentFor.Equal(endDate) {
		member.ReminderSentFor = nil
		s.members[id] = member
	}
	return nil
}

func cloneMember(m membershipdomain.Member) membershipdomain.Member {
	if m.ReminderSentFor != nil {
		marker := *m.ReminderSentFor
		m.ReminderSentFor = &marker
	}
	return m
}
