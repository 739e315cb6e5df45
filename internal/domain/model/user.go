package model

import "time"

// User is keyed by the Telegram user id; there is no separate surrogate key.
type User struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	IsAdmin           bool       `json:"is_admin"`
	IsPremium         bool       `json:"is_premium"`
	IsPremiumPro      bool       `json:"is_premium_pro"`
	IsBlocked         bool       `json:"is_blocked"`
	DownloadCount     int        `json:"download_count"`
	JoinedAt          time.Time  `json:"joined_at"`
	TrialStartedAt    *time.Time `json:"trial_started_at"`
	TrialExpiresAt    *time.Time `json:"trial_expires_at"`
	PremiumExpiresAt  *time.Time `json:"premium_expires_at"`
	ReferralCode      *string    `json:"referral_code"`
	ReferredBy        *int64     `json:"referred_by"`
	SubscriptionEnded *time.Time `json:"subscription_expired_at"`
	DeletionDueAt     *time.Time `json:"tracks_deletion_scheduled_at"`
}
