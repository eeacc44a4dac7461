package membership

import "time"

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

type SubscriptionStatus string

const (
	SubscriptionPending SubscriptionStatus = "pending"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

type Member struct {
	ID                 string             `gorm:"primaryKey"`
	Name               string             `gorm:"not null"`
	Email              string             `gorm:"not null;uniqueIndex:members_email_key"`
	Phone              string             `gorm:"not null;uniqueIndex:members_phone_key"`
	DateOfBirth        time.Time          `gorm:"not null"`
	Plan               Plan               `gorm:"size:16;not null"`
	StartDate          time.Time          `gorm:"not null"`
	EndDate            time.Time          `gorm:"not null;index"`
	PaymentMethod      PaymentMethod      `gorm:"size:16;not null"`
	PaymentStatus      PaymentStatus      `gorm:"size:16;not null;index"`
	SubscriptionStatus SubscriptionStatus `gorm:"size:16;not null;index"`
	ReceiptPath        string
	// ReminderSentFor holds the end date the last expiring-soon reminder was sent for.
	ReminderSentFor *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Member) TableName() string {
	return "members"
}

// Status is the pair of lifecycle columns that only change through
// Repository.SwapStatus.
type Status struct {
	Payment      PaymentStatus
	Subscription SubscriptionStatus
}

func (m Member) Status() Status {
	return Status{Payment: m.PaymentStatus, Subscription: m.SubscriptionStatus}
}

type ListFilter struct {
	PaymentStatus      PaymentStatus
	SubscriptionStatus SubscriptionStatus
	Query              string
	Limit              int
	Offset             int
}

type RegisterInput struct {
	Name          string
	Email         string
	Phone         string
	DateOfBirth   time.Time
	Plan          string
	StartDate     time.Time
	EndDate       *time.Time
	PaymentMethod string
}

// UpdateInput carries the editable profile fields; nil means unchanged.
type UpdateInput struct {
	Name      *string
	Email     *string
	Phone     *string
	Plan      *string
	StartDate *time.Time
	EndDate   *time.Time
}
