package dto

type ReferralCodeResponse struct {
	Code       string `json:"code"`
	InviteLink string `json:"invite_link"`
}

type ReferralRegisterRequest struct {
	Code string `json:"code"`
}

type ReferralRegisterResponse struct {
	OK         bool   `json:"ok"`
	ReferrerID int64  `json:"referrer_id"`
	Status     string `json:"status"`
}
