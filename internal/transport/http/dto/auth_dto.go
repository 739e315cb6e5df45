package dto

type TelegramAuthRequest struct {
	InitData string `json:"init_data"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthMeResponse struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// AuthTokensResponse is the login/refresh reply. Subscription is filled on
// the init-data login so the Mini App renders its entry screen from one call.
type AuthTokensResponse struct {
	AccessToken  string                      `json:"access_token"`
	RefreshToken string                      `json:"refresh_token"`
	ExpiresInSec int64                       `json:"expires_in_sec"`
	Me           AuthMeResponse              `json:"me"`
	Subscription *SubscriptionStatusResponse `json:"subscription,omitempty"`
}

type LogoutResponse struct {
	OK bool `json:"ok"`
}
