package model

import (
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
)

type Referral struct {
	ID          int64                `json:"id"`
	ReferrerID  int64                `json:"referrer_id"`
	ReferredID  int64                `json:"referred_id"`
	Status      enums.ReferralStatus `json:"status"`
	RewardGiven bool                 `json:"reward_given"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at"`
}
