package dto

import "time"

type SubscriptionStatusResponse struct {
	UserID           int64      `json:"user_id"`
	HasAccess        bool       `json:"has_access"`
	Reason           string     `json:"reason"`
	IsAdmin          bool       `json:"is_admin"`
	IsPremium        bool       `json:"is_premium"`
	IsPremiumPro     bool       `json:"is_premium_pro"`
	IsBlocked        bool       `json:"is_blocked"`
	TrialDaysLeft    int        `json:"trial_days_left"`
	TrialExpiresAt   *time.Time `json:"trial_expires_at,omitempty"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	DownloadCount    int        `json:"download_count"`
}
