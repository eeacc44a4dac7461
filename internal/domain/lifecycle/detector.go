package lifecycle

import (
	"time"

	"github.com/botio91514/gym-backend/internal/domain/membership"
)

const DefaultReminderWindow = 7 * 24 * time.Hour

func NeedsExpiry(m membership.Member, now time.Time) bool {
	return m.EndDate.Before(now) && m.SubscriptionStatus != membership.SubscriptionExpired
}

func NeedsReminder(m membership.Member, now time.Time, window time.Duration) bool {
	return m.SubscriptionStatus == membership.SubscriptionActive &&
		m.EndDate.After(now) &&
		m.EndDate.Before(now.Add(window))
}

// DaysLeft rounds partial days up, so 25 hours left is 2 days.
func DaysLeft(end, now time.Time) int {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}
