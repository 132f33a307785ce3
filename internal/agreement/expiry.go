package agreement

import (
	"math"
	"time"
)

// Expiry policy windows.
const (
	WarningWindow  = 30 * 24 * time.Hour
	CriticalWindow = 7 * 24 * time.Hour
	GracePeriod    = 14 * 24 * time.Hour
	ReviewInterval = 365 * 24 * time.Hour
)

// WarningLevel classifies how close an agreement is to expiring.
type WarningLevel string

const (
	WarningNone        WarningLevel = "none"
	WarningApproaching WarningLevel = "warning"
	WarningCritical    WarningLevel = "critical"
	WarningExpired     WarningLevel = "expired"
)

// GraceStatus classifies the post-expiry grace window. While the grace
// period is active monitoring continues unabated; once it has expired,
// monitoring stops until renewal.
type GraceStatus string

const (
	GraceNotStarted GraceStatus = "not-started"
	GraceActive     GraceStatus = "active"
	GraceExpired    GraceStatus = "expired"
)

// DaysUntilExpiry returns the signed whole-day count until expiry. The
// division floors, so the count goes negative the moment expiry passes
// rather than sitting at zero for a day.
func DaysUntilExpiry(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}

// WarningLevelAt classifies expiry proximity. A nil expiry never warns.
func WarningLevelAt(expiry *time.Time, now time.Time) WarningLevel {
	if expiry == nil {
		return WarningNone
	}
	remaining := expiry.Sub(now)
	switch {
	case remaining < 0:
		return WarningExpired
	case remaining <= CriticalWindow:
		return WarningCritical
	case remaining <= WarningWindow:
		return WarningApproaching
	default:
		return WarningNone
	}
}

// GracePeriodStatusAt classifies the 14-day window after expiry. A nil
// expiry never enters grace.
func GracePeriodStatusAt(expiry *time.Time, now time.Time) GraceStatus {
	if expiry == nil {
		return GraceNotStarted
	}
	past := now.Sub(*expiry)
	switch {
	case past < 0:
		return GraceNotStarted
	case past <= GracePeriod:
		return GraceActive
	default:
		return GraceExpired
	}
}

// AnnualReviewDue reports whether the agreement is due its yearly review. An
// agreement with no expiry date is still subject to review; the clock runs
// from the last review, or creation when never reviewed.
func AnnualReviewDue(a Agreement, now time.Time) bool {
	base := a.CreatedAt
	if a.LastReviewDate != nil {
		base = *a.LastReviewDate
	}
	return now.Sub(base) >= ReviewInterval
}
