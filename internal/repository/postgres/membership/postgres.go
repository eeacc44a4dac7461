package membership

import (
	"context"
	"errors"
	"strings"
	"time"

	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(membershipdomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) Create(ctx context.Context, member *membershipdomain.Member) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*membershipdomain.Member, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*membershipdomain.Member, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*membershipdomain.Member, error) {
	return r.first(ctx, "phone = ?", phone)
}

func (r *PostgresRepository) first(ctx context.Context, query string, args ...any) (*membershipdomain.Member, error) {
	var member membershipdomain.Member
	if err := r.db.WithContext(ctx).Where(query, args...).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, membershipdomain.ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter membershipdomain.ListFilter) ([]membershipdomain.Member, int64, error) {
	query := r.db.WithContext(ctx).Model(&membershipdomain.Member{})
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.SubscriptionStatus != "" {
		query = query.Where("subscription_status = ?", filter.SubscriptionStatus)
	}
	if filter.Query != "" {
		like := "%" + escapeLike(strings.ToLower(filter.Query)) + "%"
		query = query.Where("(LOWER(name) LIKE ? ESCAPE '\\' OR email LIKE ? ESCAPE '\\' OR phone LIKE ? ESCAPE '\\')", like, like, like)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at desc, id asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var members []membershipdomain.Member
	if err := query.Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, member *membershipdomain.Member) error {
	result := r.db.WithContext(ctx).
		Model(&membershipdomain.Member{}).
		Where("id = ?", member.ID).
		Updates(map[string]any{
			"name":       member.Name,
			"email":      member.Email,
			"phone":      member.Phone,
			"plan":       member.Plan,
			"start_date": member.StartDate,
			"end_date":   member.EndDate,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return membershipdomain.ErrMemberNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&membershipdomain.Member{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PostgresRepository) SwapStatus(ctx context.Context, id string, expected, next membershipdomain.Status) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&membershipdomain.Member{}).
		Where("id = ? AND payment_status = ? AND subscription_status = ?", id, expected.Payment, expected.Subscription).
		Updates(map[string]any{
			"payment_status":      next.Payment,
			"subscription_status": next.Subscription,
			"updated_at":          time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) SetReceipt(ctx context.Context, id, path string) error {
	result := r.db.WithContext(ctx).
		Model(&membershipdomain.Member{}).
		Where("id = ?", id).
		Updates(map[string]any{"receipt_path": path, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return membershipdomain.ErrMemberNotFound
	}
	return nil
}

func (r *PostgresRepository) ListDueForExpiry(ctx context.Context, now time.Time) ([]membershipdomain.Member, error) {
	var members []membershipdomain.Member
	err := r.db.WithContext(ctx).
		Where("end_date < ? AND subscription_status <> ?", now.UTC(), membershipdomain.SubscriptionExpired).
		Order("end_date asc").
		Find(&members).Error
	return members, err
}

func (r *PostgresRepository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]membershipdomain.Member, error) {
	var members []membershipdomain.Member
	err := r.db.WithContext(ctx).
		Where("end_date > ? AND end_date < ? AND subscription_status = ?", from.UTC(), to.UTC(), membershipdomain.SubscriptionActive).
		Order("end_date asc").
		Find(&members).Error
	return members, err
}

func (r *PostgresRepository) ClaimReminder(ctx context.Context, id string, endDate time.Time) (bool, error) {
	endDate = endDate.UTC()
	result := r.db.WithContext(ctx).
		Model(&membershipdomain.Member{}).
		Where("id = ? AND (reminder_sent_for IS NULL OR reminder_sent_for <> ?)", id, endDate).
		Update("reminder_sent_for", endDate)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) ReleaseReminder(ctx context.Context, id string, endDate time.Time) error {
	return r.db.WithContext(ctx).
		Model(&membershipdomain.Member{}).
		Where("id = ? AND reminder_sent_for = ?", id, endDate.UTC()).
		Update("reminder_sent_for", gorm.Expr("NULL")).Error
}

// translateWriteError maps unique-index violations onto the domain conflict error.
// Postgres reports the constraint name; other drivers only the message.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &membershipdomain.ConflictError{Field: conflictField(pgErr.ConstraintName)}
	}

	msg := strings.ToLower(err.Error())
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(msg, "unique constraint") {
		return &membershipdomain.ConflictError{Field: conflictField(msg)}
	}
	return err
}

func conflictField(hint string) string {
	switch {
	case strings.Contains(hint, "email"):
		return "email"
	case strings.Contains(hint, "phone"):
		return "phone"
	default:
		return ""
	}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
