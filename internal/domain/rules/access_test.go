package rules

import (
	"testing"
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

func TestBlockedWinsOverEveryFlag(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	premiumUntil := now.Add(48 * time.Hour)
	trialUntil := now.Add(24 * time.Hour)

	u := model.User{
		ID:               7,
		IsBlocked:        true,
		IsAdmin:          true,
		IsPremium:        true,
		IsPremiumPro:     true,
		PremiumExpiresAt: &premiumUntil,
		TrialExpiresAt:   &trialUntil,
	}

	decision := EvaluateAccess(u, now)
	if decision.HasAccess {
		t.Fatalf("blocked user must not have access")
	}
	if decision.Reason != enums.AccessReasonBlocked {
		t.Fatalf("unexpected reason: got %s want %s", decision.Reason, enums.AccessReasonBlocked)
	}
}

func TestReasonPrecedence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trialUntil := now.Add(24 * time.Hour)

	cases := []struct {
		name string
		user model.User
		want enums.AccessReason
	}{
		{
			name: "admin before premium_pro",
			user: model.User{IsAdmin: true, IsPremiumPro: true, IsPremium: true},
			want: enums.AccessReasonAdmin,
		},
		{
			name: "premium_pro before premium",
			user: model.User{IsPremiumPro: true, IsPremium: true},
			want: enums.AccessReasonPremiumPro,
		},
		{
			name: "premium before trial",
			user: model.User{IsPremium: true, TrialExpiresAt: &trialUntil},
			want: enums.AccessReasonPremium,
		},
		{
			name: "trial when nothing else",
			user: model.User{TrialExpiresAt: &trialUntil},
			want: enums.AccessReasonTrial,
		},
		{
			name: "expired otherwise",
			user: model.User{},
			want: enums.AccessReasonExpired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := EvaluateAccess(tc.user, now)
			if decision.Reason != tc.want {
				t.Fatalf("unexpected reason: got %s want %s", decision.Reason, tc.want)
			}
			wantAccess := tc.want != enums.AccessReasonExpired
			if decision.HasAccess != wantAccess {
				t.Fatalf("unexpected access: got %v want %v", decision.HasAccess, wantAccess)
			}
		})
	}
}

func TestPremiumFlagGrantsPastTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lapsed := now.Add(-24 * time.Hour)

	decision := EvaluateAccess(model.User{IsPremium: true, PremiumExpiresAt: &lapsed}, now)
	if !decision.HasAccess || decision.Reason != enums.AccessReasonPremium {
		t.Fatalf("premium flag must grant until cleanup clears it, got %+v", decision)
	}

	decision = EvaluateAccess(model.User{IsPremiumPro: true, PremiumExpiresAt: &lapsed}, now)
	if !decision.HasAccess || decision.Reason != enums.AccessReasonPremiumPro {
		t.Fatalf("premium_pro flag must grant until cleanup clears it, got %+v", decision)
	}
}

func TestTrialDaysLeftTruncates(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trialUntil := now.Add(2*24*time.Hour + 23*time.Hour)

	decision := EvaluateAccess(model.User{TrialExpiresAt: &trialUntil}, now)
	if !decision.HasAccess || decision.Reason != enums.AccessReasonTrial {
		t.Fatalf("expected trial access, got %+v", decision)
	}
	if decision.TrialDaysLeft != 2 {
		t.Fatalf("days left must truncate: got %d want 2", decision.TrialDaysLeft)
	}
}

func TestExpiredTrialDeniesAccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trialUntil := now.Add(-time.Minute)

	decision := EvaluateAccess(model.User{TrialExpiresAt: &trialUntil}, now)
	if decision.HasAccess {
		t.Fatalf("expired trial must not grant access")
	}
	if decision.Reason != enums.AccessReasonExpired {
		t.Fatalf("unexpected reason: got %s", decision.Reason)
	}
}
