package referrals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
)

const codePrefix = "REF"

var (
	ErrInvalidCode     = errors.New("invalid referral code")
	ErrSelfReferral    = errors.New("self referral")
	ErrAlreadyReferred = errors.New("user already referred")
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	SetReferralCode(ctx context.Context, id int64, code string) error
	FindByReferralCode(ctx context.Context, code string) (model.User, error)
	SetReferrer(ctx context.Context, id, referrerID int64) (bool, error)
}

type ReferralStore interface {
	Create(ctx context.Context, referrerID, referredID int64, now time.Time) (model.Referral, error)
	CountsByReferrer(ctx context.Context, referrerID int64) (pgrepo.ReferralCounts, error)
	ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]model.Referral, error)
}

// RewardStore atomically completes a pending referral and extends the
// referrer's premium.
type RewardStore interface {
	RewardPendingReferral(ctx context.Context, referredID int64, bonusDays int, now time.Time) (int64, bool, error)
}

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Service struct {
	users     UserStore
	referrals ReferralStore
	rewards   RewardStore
	notifier  Notifier
	bonusDays int
	botName   string
	log       *zap.Logger
	now       func() time.Time
}

type Dependencies struct {
	Users     UserStore
	Referrals ReferralStore
	Rewards   RewardStore
	Notifier  Notifier
}

func NewService(deps Dependencies, bonusDays int, botName string, log *zap.Logger) *Service {
	if bonusDays <= 0 {
		bonusDays = 30
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		users:     deps.Users,
		referrals: deps.Referrals,
		rewards:   deps.Rewards,
		notifier:  deps.Notifier,
		bonusDays: bonusDays,
		botName:   botName,
		log:       log,
		now:       time.Now,
	}
}

// CodeFor returns the user's referral code, assigning the canonical REF{id}
// code on first use.
func (s *Service) CodeFor(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user for referral code: %w", err)
	}
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, nil
	}

	code := fmt.Sprintf("%s%d", codePrefix, userID)
	if err := s.users.SetReferralCode(ctx, userID, code); err != nil {
		return "", fmt.Errorf("assign referral code: %w", err)
	}

	return code, nil
}

// InviteLink renders the bot deep link carrying the referral code.
func (s *Service) InviteLink(ctx context.Context, userID int64) (string, error) {
	code, err := s.CodeFor(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botName, code), nil
}

// Register links a new user to the owner of the code and opens a pending
// referral. Self-referral and re-referral are rejected without side effects.
func (s *Service) Register(ctx context.Context, newUserID int64, code string) (model.Referral, error) {
	trimmed := strings.TrimSpace(code)
	if newUserID <= 0 || trimmed == "" {
		return model.Referral{}, ErrInvalidCode
	}

	referrer, err := s.users.FindByReferralCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return model.Referral{}, ErrInvalidCode
		}
		return model.Referral{}, fmt.Errorf("resolve referral code: %w", err)
	}
	if referrer.ID == newUserID {
		return model.Referral{}, ErrSelfReferral
	}

	linked, err := s.users.SetReferrer(ctx, newUserID, referrer.ID)
	if err != nil {
		return model.Referral{}, fmt.Errorf("link referrer: %w", err)
	}
	if !linked {
		return model.Referral{}, ErrAlreadyReferred
	}

	ref, err := s.referrals.Create(ctx, referrer.ID, newUserID, s.now())
	if err != nil {
		if errors.Is(err, pgrepo.ErrReferralExists) {
			return model.Referral{}, ErrAlreadyReferred
		}
		return model.Referral{}, fmt.Errorf("create referral: %w", err)
	}

	return ref, nil
}

type Stats struct {
	Code            string           `json:"code"`
	InviteLink      string           `json:"invite_link"`
	Total           int              `json:"total"`
	Pending         int              `json:"pending"`
	Completed       int              `json:"completed"`
	BonusDaysEarned int              `json:"bonus_days_earned"`
	Recent          []model.Referral `json:"recent"`
}

func (s *Service) StatsFor(ctx context.Context, userID int64) (Stats, error) {
	code, err := s.CodeFor(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	counts, err := s.referrals.CountsByReferrer(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("referral counts: %w", err)
	}

	recent, err := s.referrals.ListByReferrer(ctx, userID, 20)
	if err != nil {
		return Stats{}, fmt.Errorf("recent referrals: %w", err)
	}

	return Stats{
		Code:            code,
		InviteLink:      fmt.Sprintf("https://t.me/%s?start=%s", s.botName, code),
		Total:           counts.Total,
		Pending:         counts.Pending,
		Completed:       counts.Completed,
		BonusDaysEarned: counts.Completed * s.bonusDays,
		Recent:          recent,
	}, nil
}

// OnPaymentCompleted pays out the referrer of a user whose payment just
// committed. The pending-row transition guarantees at most one payout per
// referred user, no matter how many payments follow.
func (s *Service) OnPaymentCompleted(ctx context.Context, referredID int64) error {
	referrerID, rewarded, err := s.rewards.RewardPendingReferral(ctx, referredID, s.bonusDays, s.now())
	if err != nil {
		return fmt.Errorf("reward referral: %w", err)
	}
	if !rewarded {
		return nil
	}

	s.log.Info("referral reward granted",
		zap.Int64("referrer_id", referrerID),
		zap.Int64("referred_id", referredID),
		zap.Int("bonus_days", s.bonusDays))

	if s.notifier != nil {
		text := fmt.Sprintf("🎉 Your friend subscribed! You received %d bonus days of Premium.", s.bonusDays)
		if err := s.notifier.SendText(ctx, referrerID, text); err != nil {
			s.log.Warn("referral notification failed", zap.Int64("referrer_id", referrerID), zap.Error(err))
		}
	}

	return nil
}
