package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEveryKind(t *testing.T) {
	kinds := []Kind{
		KindRegistrationPending,
		KindPaymentConfirmed,
		KindMembershipExpired,
		KindExpiringSoon,
		KindExpiredReengagement,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			assert.True(t, kind.Valid())
			msg, err := Render(kind, sampleData())
			require.NoError(t, err)
			assert.NotEmpty(t, msg.Subject)
			assert.Contains(t, msg.HTML, "Dear Asha,")
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	a, err := Render(KindPaymentConfirmed, sampleData())
	require.NoError(t, err)
	b, err := Render(KindPaymentConfirmed, sampleData())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRenderExpiringSoonDaysLeft(t *testing.T) {
	data := sampleData()
	data.DaysLeft = 3
	msg, err := Render(KindExpiringSoon, data)
	require.NoError(t, err)
	assert.Equal(t, "Membership Expiring Soon", msg.Subject)
	assert.Contains(t, msg.HTML, "expire in 3 days on 1 Apr 2025")

	data.DaysLeft = 1
	msg, err = Render(KindExpiringSoon, data)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "expire in 1 day on")
}

func TestRenderPaymentConfirmedIncludesReceiptAndAmount(t *testing.T) {
	data := sampleData()
	data.ReceiptURL = "https://gym.example.com/receipts/receipt-abc-1.pdf"
	msg, err := Render(KindPaymentConfirmed, data)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, data.ReceiptURL)
	assert.Contains(t, msg.HTML, "₹3,500")
}

func TestRenderEscapesMemberInput(t *testing.T) {
	data := sampleData()
	data.MemberName = "<script>alert(1)</script>"
	msg, err := Render(KindMembershipExpired, data)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestRenderReengagementOffers(t *testing.T) {
	data := sampleData()
	data.Offers = []Offer{{PlanName: "1 Month", PriceINR: 1500}, {PlanName: "1 Year", PriceINR: 8000}}
	msg, err := Render(KindExpiredReengagement, data)
	require.NoError(t, err)
	assert.Equal(t, "Your Gym Membership Has Expired - Renew Now!", msg.Subject)
	assert.Contains(t, msg.HTML, "1 Month Plan - ₹1,500")
	assert.Contains(t, msg.HTML, "1 Year Plan - ₹8,000")
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := Render(Kind("birthday"), Data{})
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.False(t, Kind("birthday").Valid())
}

func TestFormatINR(t *testing.T) {
	assert.Equal(t, "₹1,500", FormatINR(1500))
	assert.Equal(t, "₹800", FormatINR(800))
}
