package receipt

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMember(id string) membershipdomain.Member {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return membershipdomain.Member{
		ID:                 id,
		Name:               "Asha Rao",
		Email:              "asha@example.com",
		Phone:              "9876543210",
		Plan:               membershipdomain.Plan6Months,
		StartDate:          start,
		EndDate:            membershipdomain.Plan6Months.EndDate(start),
		PaymentMethod:      membershipdomain.PaymentOnline,
		PaymentStatus:      membershipdomain.PaymentConfirmed,
		SubscriptionStatus: membershipdomain.SubscriptionActive,
	}
}

func newTestGenerator(t *testing.T, now time.Time) (*Generator, *clockwork.FakeClock) {
	t.Helper()
	fake := clockwork.NewFakeClockAt(now)
	g, err := NewGenerator(t.TempDir(), "/receipts/", fake, logger.Nop())
	require.NoError(t, err)
	return g, fake
}

func TestGenerateWritesPDF(t *testing.T) {
	now := time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)
	g, _ := newTestGenerator(t, now)

	r, err := g.Generate(context.Background(), testMember("m-1"))
	require.NoError(t, err)

	wantName := "receipt-m-1-" + "1738405800000" + ".pdf"
	assert.Equal(t, filepath.Join(g.Dir(), wantName), r.FilePath)
	assert.Equal(t, "/receipts/"+wantName, r.URL)
	assert.Equal(t, now, r.CreatedAt)

	content, err := os.ReadFile(r.FilePath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestGenerateNeverOverwrites(t *testing.T) {
	now := time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)
	g, _ := newTestGenerator(t, now)

	first, err := g.Generate(context.Background(), testMember("m-1"))
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), testMember("m-1"))
	require.NoError(t, err)

	assert.NotEqual(t, first.FilePath, second.FilePath)
	_, err = os.Stat(first.FilePath)
	assert.NoError(t, err)
}

func TestGenerateFailureIsTyped(t *testing.T) {
	g, _ := newTestGenerator(t, time.Now())
	require.NoError(t, os.RemoveAll(g.Dir()))
	// A regular file where the directory should be makes every open fail.
	require.NoError(t, os.WriteFile(g.Dir(), []byte("x"), 0o644))

	_, err := g.Generate(context.Background(), testMember("m-1"))
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "m-1", genErr.MemberID)
}

func TestDeleteForMemberRemovesOnlyThatMember(t *testing.T) {
	g, fake := newTestGenerator(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := g.Generate(ctx, testMember("m-1"))
	require.NoError(t, err)
	fake.Advance(time.Hour)
	_, err = g.Generate(ctx, testMember("m-1"))
	require.NoError(t, err)
	other, err := g.Generate(ctx, testMember("m-2"))
	require.NoError(t, err)

	removed, err := g.DeleteForMember(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	matches, _ := filepath.Glob(filepath.Join(g.Dir(), "receipt-m-1-*.pdf"))
	assert.Empty(t, matches)
	_, err = os.Stat(other.FilePath)
	assert.NoError(t, err)

	_, err = g.DeleteForMember(ctx, "../*")
	assert.Error(t, err)
}
