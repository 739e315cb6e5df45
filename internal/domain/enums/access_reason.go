package enums

type AccessReason string

const (
	AccessReasonBlocked    AccessReason = "blocked"
	AccessReasonAdmin      AccessReason = "admin"
	AccessReasonPremiumPro AccessReason = "premium_pro"
	AccessReasonPremium    AccessReason = "premium"
	AccessReasonTrial      AccessReason = "trial"
	AccessReasonExpired    AccessReason = "expired"
)
