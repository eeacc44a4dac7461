// Package notify renders member notifications and delivers them over a
// pluggable transport with bounded retries.
package notify

type Kind string

const (
	KindRegistrationPending Kind = "registration-pending"
	KindPaymentConfirmed    Kind = "payment-confirmed"
	KindMembershipExpired   Kind = "membership-expired"
	KindExpiringSoon        Kind = "membership-expiring-soon"
	KindExpiredReengagement Kind = "expired-reengagement"
)

func (k Kind) Valid() bool {
	_, ok := templates[k]
	return ok
}

type Recipient struct {
	Email string
	Name  string
}
