package lifecycle

import (
	"time"

	"github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/botio91514/gym-backend/internal/receipt"
)

// SchedulerRun persists the last successful pass of a scheduled job.
type SchedulerRun struct {
	Job           string    `gorm:"primaryKey;size:64"`
	LastSuccessAt time.Time `gorm:"not null"`
}

func (SchedulerRun) TableName() string {
	return "scheduler_runs"
}

type ApprovalResult struct {
	Member membership.Member
	// Receipt is nil when the member was already confirmed.
	Receipt          *receipt.Receipt
	AlreadyConfirmed bool
	// Resumed marks an approval that finished a confirmation whose receipt step
	// had failed earlier.
	Resumed bool
	// NotificationQueued is set when the confirmation email was handed to the background queue.
	NotificationQueued bool
	// NotificationErr holds a synchronous delivery failure. The approval itself stands.
	NotificationErr error
}

type PassReport struct {
	StartedAt      time.Time
	Expired        int
	Reminded       int
	Skipped        int
	Conflicts      int
	Failures       int
	NotifyFailures int
}

func (r *PassReport) add(other PassReport) {
	r.Expired += other.Expired
	r.Reminded += other.Reminded
	r.Skipped += other.Skipped
	r.Conflicts += other.Conflicts
	r.Failures += other.Failures
	r.NotifyFailures += other.NotifyFailures
}
