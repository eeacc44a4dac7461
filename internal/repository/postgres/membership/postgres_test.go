package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var base = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&membershipdomain.Member{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newMember(id string, end time.Time, status membershipdomain.SubscriptionStatus) *membershipdomain.Member {
	return &membershipdomain.Member{
		ID:                 id,
		Name:               "Member " + id,
		Email:              id + "@example.com",
		Phone:              "98765" + id,
		DateOfBirth:        time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Plan:               membershipdomain.Plan1Month,
		StartDate:          end.AddDate(0, -1, 0),
		EndDate:            end,
		PaymentMethod:      membershipdomain.PaymentCash,
		PaymentStatus:      membershipdomain.PaymentConfirmed,
		SubscriptionStatus: status,
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newMember("a1", base, membershipdomain.SubscriptionActive)))

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1@example.com", got.Email)
	assert.True(t, base.Equal(got.EndDate))

	_, err = repo.GetByEmail(ctx, "a1@example.com")
	require.NoError(t, err)
	_, err = repo.GetByPhone(ctx, "98765a1")
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, membershipdomain.ErrMemberNotFound)
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newMember("a1", base, membershipdomain.SubscriptionActive)))

	dup := newMember("a2", base, membershipdomain.SubscriptionActive)
	dup.Email = "a1@example.com"
	err := repo.Create(ctx, dup)
	var conflict *membershipdomain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)
	assert.ErrorIs(t, err, membershipdomain.ErrConflict)
}

func TestTranslateWriteErrorUsesConstraintName(t *testing.T) {
	err := translateWriteError(&pgconn.PgError{Code: "23505", ConstraintName: "members_phone_key"})
	var conflict *membershipdomain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "phone", conflict.Field)

	other := errors.New("connection reset")
	assert.Equal(t, other, translateWriteError(other))
}

func TestTransactionRollsBack(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx membershipdomain.Repository) error {
		if err := tx.Create(ctx, newMember("t1", base, membershipdomain.SubscriptionActive)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, "t1")
	assert.ErrorIs(t, err, membershipdomain.ErrMemberNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m := newMember(fmt.Sprintf("l%d", i), base, membershipdomain.SubscriptionActive)
		if i%2 == 0 {
			m.SubscriptionStatus = membershipdomain.SubscriptionExpired
		}
		require.NoError(t, repo.Create(ctx, m))
	}
	odd := newMember("x_y", base, membershipdomain.SubscriptionActive)
	odd.Name = "Percent 100%"
	require.NoError(t, repo.Create(ctx, odd))

	members, total, err := repo.List(ctx, membershipdomain.ListFilter{SubscriptionStatus: membershipdomain.SubscriptionExpired})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, members, 3)

	members, total, err = repo.List(ctx, membershipdomain.ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, members, 2)

	members, _, err = repo.List(ctx, membershipdomain.ListFilter{Query: "100%"})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "x_y", members[0].ID)
}

func TestUpdateProfileLeavesStatusAlone(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newMember("u1", base, membershipdomain.SubscriptionActive)))
	require.NoError(t, repo.Create(ctx, newMember("u2", base, membershipdomain.SubscriptionActive)))

	m, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	m.Name = "Renamed"
	m.SubscriptionStatus = membershipdomain.SubscriptionExpired
	require.NoError(t, repo.UpdateProfile(ctx, m))

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, membershipdomain.SubscriptionActive, got.SubscriptionStatus)

	got.Phone = "98765u2"
	var conflict *membershipdomain.ConflictError
	assert.ErrorAs(t, repo.UpdateProfile(ctx, got), &conflict)

	missing := newMember("nobody", base, membershipdomain.SubscriptionActive)
	assert.ErrorIs(t, repo.UpdateProfile(ctx, missing), membershipdomain.ErrMemberNotFound)
}

func TestSwapStatusIsConditional(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()
	m := newMember("s1", base, membershipdomain.SubscriptionPending)
	m.PaymentStatus = membershipdomain.PaymentPending
	require.NoError(t, repo.Create(ctx, m))

	pending := m.Status()
	confirmed := membershipdomain.Status{Payment: membershipdomain.PaymentConfirmed, Subscription: membershipdomain.SubscriptionActive}

	ok, err := repo.SwapStatus(ctx, "s1", pending, confirmed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SwapStatus(ctx, "s1", pending, confirmed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDueQueriesAndReminderClaim(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newMember("past", base.Add(-time.Hour), membershipdomain.SubscriptionActive)))
	require.NoError(t, repo.Create(ctx, newMember("soon", base.Add(48*time.Hour), membershipdomain.SubscriptionActive)))
	require.NoError(t, repo.Create(ctx, newMember("done", base.Add(-time.Hour), membershipdomain.SubscriptionExpired)))

	due, err := repo.ListDueForExpiry(ctx, base)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "past", due[0].ID)

	due, err = repo.ListDueForReminder(ctx, base, base.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "soon", due[0].ID)

	end := due[0].EndDate
	claimed, err := repo.ClaimReminder(ctx, "soon", end)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = repo.ClaimReminder(ctx, "soon", end)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, repo.ReleaseReminder(ctx, "soon", end))
	claimed, err = repo.ClaimReminder(ctx, "soon", end)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestSetReceiptAndDelete(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newMember("d1", base, membershipdomain.SubscriptionActive)))

	require.NoError(t, repo.SetReceipt(ctx, "d1", "/receipts/r.pdf"))
	got, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "/receipts/r.pdf", got.ReceiptPath)
	assert.ErrorIs(t, repo.SetReceipt(ctx, "nobody", "x"), membershipdomain.ErrMemberNotFound)

	deleted, err := repo.Delete(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.Delete(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, deleted)
}
