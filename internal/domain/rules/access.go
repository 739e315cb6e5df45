package rules

import (
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

type AccessDecision struct {
	HasAccess      bool
	Reason         enums.AccessReason
	TrialExpiresAt *time.Time
	TrialDaysLeft  int
}

// EvaluateAccess decides whether a user may use gated functionality.
// Precedence is fixed: blocked wins over everything, then admin, then the
// two paid tiers, then an active trial window.
func EvaluateAccess(u model.User, now time.Time) AccessDecision {
	if u.IsBlocked {
		return AccessDecision{HasAccess: false, Reason: enums.AccessReasonBlocked}
	}
	if u.IsAdmin {
		return AccessDecision{HasAccess: true, Reason: enums.AccessReasonAdmin}
	}
	// The flags alone decide. A lapsed premium_expires_at does not revoke
	// here; the post-expiry cleanup clears the flags out of band.
	if u.IsPremiumPro {
		return AccessDecision{HasAccess: true, Reason: enums.AccessReasonPremiumPro}
	}
	if u.IsPremium {
		return AccessDecision{HasAccess: true, Reason: enums.AccessReasonPremium}
	}
	if u.TrialExpiresAt != nil && now.Before(*u.TrialExpiresAt) {
		// Truncated, not rounded: 2.9 remaining days report as 2.
		daysLeft := int(u.TrialExpiresAt.Sub(now) / (24 * time.Hour))
		return AccessDecision{
			HasAccess:      true,
			Reason:         enums.AccessReasonTrial,
			TrialExpiresAt: u.TrialExpiresAt,
			TrialDaysLeft:  daysLeft,
		}
	}
	return AccessDecision{HasAccess: false, Reason: enums.AccessReasonExpired}
}
