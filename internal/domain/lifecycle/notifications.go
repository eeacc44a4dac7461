package lifecycle

import (
	"context"
	"strings"

	"github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/botio91514/gym-backend/internal/notify"
)

// Queue hands a notification to a background sender.
type Queue interface {
	Enqueue(to notify.Recipient, kind notify.Kind, data notify.Data) bool
}

// RegistrationNotifier queues the registration-pending message for every new member.
type RegistrationNotifier struct {
	queue Queue
}

func NewRegistrationNotifier(queue Queue) *RegistrationNotifier {
	return &RegistrationNotifier{queue: queue}
}

func (n *RegistrationNotifier) MemberRegistered(_ context.Context, m membership.Member) {
	n.queue.Enqueue(recipientOf(m), notify.KindRegistrationPending, memberData(m))
}

func recipientOf(m membership.Member) notify.Recipient {
	return notify.Recipient{Email: m.Email, Name: m.Name}
}

func memberData(m membership.Member) notify.Data {
	terms := m.Plan.Terms()
	return notify.Data{
		MemberName:    m.Name,
		PlanName:      m.Plan.DisplayName(),
		AmountINR:     terms.PriceINR,
		StartDate:     m.StartDate,
		EndDate:       m.EndDate,
		PaymentMethod: string(m.PaymentMethod),
	}
}

func renewalOffers() []notify.Offer {
	plans := membership.Plans()
	offers := make([]notify.Offer, 0, len(plans))
	for _, p := range plans {
		terms := p.Terms()
		offers = append(offers, notify.Offer{PlanName: terms.DisplayName, PriceINR: terms.PriceINR})
	}
	return offers
}

func absoluteURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
