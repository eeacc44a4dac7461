package membership

import (
	"context"
	"time"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	Create(ctx context.Context, member *Member) error
	GetByID(ctx context.Context, id string) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	GetByPhone(ctx context.Context, phone string) (*Member, error)
	List(ctx context.Context, filter ListFilter) ([]Member, int64, error)
	// UpdateProfile writes the editable columns only. Status columns are untouched.
	UpdateProfile(ctx context.Context, member *Member) error
	Delete(ctx context.Context, id string) (bool, error)
	// SwapStatus moves the member from expected to next and reports whether the
	// row still held expected.
	SwapStatus(ctx context.Context, id string, expected, next Status) (bool, error)
	SetReceipt(ctx context.Context, id, path string) error
	ListDueForExpiry(ctx context.Context, now time.Time) ([]Member, error)
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]Member, error)
	// ClaimReminder marks a reminder as sent for endDate unless it already was.
	ClaimReminder(ctx context.Context, id string, endDate time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, id string, endDate time.Time) error
}
