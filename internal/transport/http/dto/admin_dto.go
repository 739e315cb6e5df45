package dto

import (
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

type RevenueLineResponse struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

type AdminStatsResponse struct {
	TotalUsers    int                   `json:"total_users"`
	PremiumUsers  int                   `json:"premium_users"`
	PremiumPro    int                   `json:"premium_pro_users"`
	BlockedUsers  int                   `json:"blocked_users"`
	ActiveTrials  int                   `json:"active_trials"`
	NewToday      int                   `json:"new_today"`
	PaymentsToday int                   `json:"payments_today"`
	Revenue       []RevenueLineResponse `json:"revenue"`
}

type TransactionsPageResponse struct {
	Transactions []model.Payment `json:"transactions"`
	Total        int             `json:"total"`
	Limit        int             `json:"limit"`
	Offset       int             `json:"offset"`
}

type UsersPageResponse struct {
	Users  []model.User `json:"users"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type TopUsersResponse struct {
	Users []model.User `json:"users"`
}

type ActivityBucketResponse struct {
	Day    time.Time `json:"day"`
	Joined int       `json:"joined"`
}

type ActivityResponse struct {
	Days    int                      `json:"days"`
	Buckets []ActivityBucketResponse `json:"buckets"`
}

type BroadcastRequest struct {
	Message string `json:"message"`
}

type BroadcastResponse struct {
	Started    bool `json:"started"`
	Recipients int  `json:"recipients"`
}

type GrantRequest struct {
	IsAdmin      *bool `json:"is_admin,omitempty"`
	IsPremium    *bool `json:"is_premium,omitempty"`
	IsPremiumPro *bool `json:"is_premium_pro,omitempty"`
	IsBlocked    *bool `json:"is_blocked,omitempty"`
	TrialDays    *int  `json:"trial_days,omitempty"`
	PremiumDays  int   `json:"premium_days,omitempty"`
}

type CacheStatsResponse struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type CacheResetResponse struct {
	OK bool `json:"ok"`
}
