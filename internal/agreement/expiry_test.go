package agreement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func TestWarningLevelAt(t *testing.T) {
	now := mustTime(t, "2026-06-01T00:00:00Z")

	cases := []struct {
		name   string
		expiry *time.Time
		want   WarningLevel
	}{
		{name: "no expiry never warns", expiry: nil, want: WarningNone},
		{name: "far out", expiry: ptr(now.Add(90 * 24 * time.Hour)), want: WarningNone},
		{name: "inside thirty days", expiry: ptr(now.Add(20 * 24 * time.Hour)), want: WarningApproaching},
		{name: "inside seven days", expiry: ptr(now.Add(3 * 24 * time.Hour)), want: WarningCritical},
		{name: "boundary thirty days", expiry: ptr(now.Add(WarningWindow)), want: WarningApproaching},
		{name: "past due", expiry: ptr(now.Add(-time.Hour)), want: WarningExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, WarningLevelAt(tc.expiry, now))
		})
	}
}

func TestGracePeriodStatusAt(t *testing.T) {
	now := mustTime(t, "2026-06-01T00:00:00Z")

	require.Equal(t, GraceNotStarted, GracePeriodStatusAt(nil, now))
	require.Equal(t, GraceNotStarted, GracePeriodStatusAt(ptr(now.Add(time.Hour)), now))
	require.Equal(t, GraceActive, GracePeriodStatusAt(ptr(now.Add(-24*time.Hour)), now))
	require.Equal(t, GraceActive, GracePeriodStatusAt(ptr(now.Add(-GracePeriod)), now))
	require.Equal(t, GraceExpired, GracePeriodStatusAt(ptr(now.Add(-GracePeriod-time.Hour)), now))
}

func TestDaysUntilExpiry(t *testing.T) {
	now := mustTime(t, "2026-06-01T00:00:00Z")
	require.Equal(t, 10, DaysUntilExpiry(now.Add(10*24*time.Hour), now))
	require.Equal(t, 0, DaysUntilExpiry(now.Add(12*time.Hour), now))
	require.Equal(t, -3, DaysUntilExpiry(now.Add(-3*24*time.Hour), now))

	// Negative as soon as expiry passes, not only after a full day.
	require.Equal(t, -1, DaysUntilExpiry(now.Add(-12*time.Hour), now))
	require.Equal(t, -1, DaysUntilExpiry(now.Add(-time.Minute), now))
	require.Equal(t, -2, DaysUntilExpiry(now.Add(-25*time.Hour), now))
}

func TestAnnualReviewDue(t *testing.T) {
	now := mustTime(t, "2026-06-01T00:00:00Z")

	t.Run("clock runs from creation when never reviewed", func(t *testing.T) {
		a := Agreement{CreatedAt: now.Add(-ReviewInterval)}
		require.True(t, AnnualReviewDue(a, now))
	})

	t.Run("recent review resets the clock", func(t *testing.T) {
		a := Agreement{
			CreatedAt:      now.Add(-2 * ReviewInterval),
			LastReviewDate: ptr(now.Add(-30 * 24 * time.Hour)),
		}
		require.False(t, AnnualReviewDue(a, now))
	})

	t.Run("no expiry date still reviewed", func(t *testing.T) {
		a := Agreement{CreatedAt: now.Add(-400 * 24 * time.Hour)}
		require.Nil(t, a.ExpiryDate)
		require.True(t, AnnualReviewDue(a, now))
	})
}

func ptr(ts time.Time) *time.Time {
	return &ts
}
