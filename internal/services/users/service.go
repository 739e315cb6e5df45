package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	UpdateProfile(ctx context.Context, id int64, username, firstName, lastName string) error
	ApplyGrant(ctx context.Context, id int64, patch pgrepo.GrantPatch, premiumDays int, now time.Time, deletionGrace time.Duration) (model.User, bool, error)
	List(ctx context.Context, filter pgrepo.UserFilter) ([]model.User, int, error)
	Stats(ctx context.Context, now time.Time) (pgrepo.UserStats, error)
	TopByDownloads(ctx context.Context, limit int) ([]model.User, error)
	ActivityByDay(ctx context.Context, since time.Time) ([]pgrepo.ActivityBucket, error)
}

// ReferralRegistrar opens a referral for a brand-new user whose deep link
// carried a code.
type ReferralRegistrar interface {
	Register(ctx context.Context, newUserID int64, code string) (model.Referral, error)
}

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Service struct {
	store         UserStore
	referrals     ReferralRegistrar
	notifier      Notifier
	trialDays     int
	ownerID       int64
	deletionGrace time.Duration
	log           *zap.Logger
	now           func() time.Time
}

type Dependencies struct {
	Store     UserStore
	Referrals ReferralRegistrar
	Notifier  Notifier
}

func NewService(deps Dependencies, trialDays int, ownerID int64, deletionGrace time.Duration, log *zap.Logger) *Service {
	if trialDays <= 0 {
		trialDays = 3
	}
	if deletionGrace <= 0 {
		deletionGrace = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		store:         deps.Store,
		referrals:     deps.Referrals,
		notifier:      deps.Notifier,
		trialDays:     trialDays,
		ownerID:       ownerID,
		deletionGrace: deletionGrace,
		log:           log,
		now:           time.Now,
	}
}

// Bootstrap returns the user row for a validated Telegram identity, creating
// it with the trial window on first sight. The referral code from the start
// parameter is registered once, on creation only.
func (s *Service) Bootstrap(ctx context.Context, profile authsvc.TelegramProfile) (model.User, error) {
	existing, err := s.store.FindByID(ctx, profile.ID)
	if err == nil {
		if updateErr := s.store.UpdateProfile(ctx, profile.ID, profile.Username, profile.FirstName, profile.LastName); updateErr != nil {
			s.log.Warn("profile refresh failed", zap.Int64("user_id", profile.ID), zap.Error(updateErr))
		}
		return s.ensureOwnerFlags(ctx, existing)
	}
	if !errors.Is(err, pgrepo.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}

	now := s.now()
	trialStart := now
	trialEnd := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)
	isOwner := profile.ID == s.ownerID
	created, err := s.store.Create(ctx, model.User{
		ID:             profile.ID,
		Username:       profile.Username,
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
		IsAdmin:        isOwner,
		IsPremiumPro:   isOwner,
		JoinedAt:       now,
		TrialStartedAt: &trialStart,
		TrialExpiresAt: &trialEnd,
	})
	if err != nil {
		// Two concurrent first logins race on the insert.
		if errors.Is(err, pgrepo.ErrUserExists) {
			return s.store.FindByID(ctx, profile.ID)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.referrals != nil && profile.StartParam != "" {
		if _, err := s.referrals.Register(ctx, created.ID, profile.StartParam); err != nil {
			s.log.Info("referral registration skipped",
				zap.Int64("user_id", created.ID),
				zap.String("code", profile.StartParam),
				zap.Error(err))
		}
	}

	return created, nil
}

// ensureOwnerFlags keeps the bot owner elevated. The owner row is repaired
// on login even after an admin grant stripped the flags.
func (s *Service) ensureOwnerFlags(ctx context.Context, u model.User) (model.User, error) {
	if u.ID != s.ownerID || (u.IsAdmin && u.IsPremiumPro) {
		return u, nil
	}

	on := true
	restored, _, err := s.store.ApplyGrant(ctx, u.ID, pgrepo.GrantPatch{IsAdmin: &on, IsPremiumPro: &on}, 0, s.now(), s.deletionGrace)
	if err != nil {
		return model.User{}, fmt.Errorf("restore owner flags: %w", err)
	}
	return restored, nil
}

func (s *Service) Get(ctx context.Context, id int64) (model.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GrantInput is the admin bulk-patch: nil fields are left untouched.
// TrialDays restarts the trial window; zero clears it.
type GrantInput struct {
	IsAdmin      *bool
	IsPremium    *bool
	IsPremiumPro *bool
	IsBlocked    *bool
	TrialDays    *int
	PremiumDays  int
}

// Grant applies the sparse patch atomically. An explicit premium revocation
// schedules delivered-content deletion after the grace window and notifies
// the user.
func (s *Service) Grant(ctx context.Context, userID int64, in GrantInput) (model.User, error) {
	patch := pgrepo.GrantPatch{
		IsAdmin:      in.IsAdmin,
		IsPremium:    in.IsPremium,
		IsPremiumPro: in.IsPremiumPro,
		IsBlocked:    in.IsBlocked,
		TrialDays:    in.TrialDays,
	}
	if patch.Empty() && in.PremiumDays <= 0 {
		return model.User{}, fmt.Errorf("empty grant request")
	}

	updated, revoked, err := s.store.ApplyGrant(ctx, userID, patch, in.PremiumDays, s.now(), s.deletionGrace)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("apply grant: %w", err)
	}

	if revoked && s.notifier != nil {
		hours := int(s.deletionGrace / time.Hour)
		text := fmt.Sprintf("⚠️ Your Premium subscription has ended. Saved tracks will be removed from this chat in %d hours.", hours)
		if err := s.notifier.SendText(ctx, userID, text); err != nil {
			s.log.Warn("revocation notification failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	return updated, nil
}

func (s *Service) List(ctx context.Context, filter pgrepo.UserFilter) ([]model.User, int, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) Stats(ctx context.Context) (pgrepo.UserStats, error) {
	return s.store.Stats(ctx, s.now())
}

func (s *Service) TopByDownloads(ctx context.Context, limit int) ([]model.User, error) {
	return s.store.TopByDownloads(ctx, limit)
}

func (s *Service) ActivityByDay(ctx context.Context, days int) ([]pgrepo.ActivityBucket, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.store.ActivityByDay(ctx, since)
}
