package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
)

type storeStub struct {
	users      map[int64]*model.User
	registered []string
	notified   []int64
}

func newStoreStub() *storeStub {
	return &storeStub{users: make(map[int64]*model.User)}
}

func (s *storeStub) FindByID(_ context.Context, id int64) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, pgrepo.ErrUserNotFound
	}
	return *u, nil
}

func (s *storeStub) Create(_ context.Context, u model.User) (model.User, error) {
	if _, exists := s.users[u.ID]; exists {
		return model.User{}, pgrepo.ErrUserExists
	}
	copied := u
	s.users[u.ID] = &copied
	return copied, nil
}

func (s *storeStub) UpdateProfile(_ context.Context, id int64, username, firstName, lastName string) error {
	if u, ok := s.users[id]; ok {
		u.Username, u.FirstName, u.LastName = username, firstName, lastName
	}
	return nil
}

func (s *storeStub) ApplyGrant(_ context.Context, id int64, patch pgrepo.GrantPatch, premiumDays int, now time.Time, grace time.Duration) (model.User, bool, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, false, pgrepo.ErrUserNotFound
	}

	wasPremium := u.IsPremium
	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
	}
	if patch.IsPremium != nil {
		u.IsPremium = *patch.IsPremium
	}
	if patch.IsPremiumPro != nil {
		u.IsPremiumPro = *patch.IsPremiumPro
	}
	if patch.IsBlocked != nil {
		u.IsBlocked = *patch.IsBlocked
	}
	if patch.TrialDays != nil {
		if *patch.TrialDays <= 0 {
			u.TrialStartedAt, u.TrialExpiresAt = nil, nil
		} else {
			start := now
			end := now.Add(time.Duration(*patch.TrialDays) * 24 * time.Hour)
			u.TrialStartedAt, u.TrialExpiresAt = &start, &end
		}
	}

	if premiumDays > 0 {
		base := now
		if u.PremiumExpiresAt != nil && u.PremiumExpiresAt.After(base) {
			base = *u.PremiumExpiresAt
		}
		until := base.AddDate(0, 0, premiumDays)
		u.IsPremium = true
		u.PremiumExpiresAt = &until
	}

	revoked := false
	if patch.IsPremium != nil && !*patch.IsPremium && wasPremium {
		deletionAt := now.Add(grace)
		u.IsPremium = false
		u.IsPremiumPro = false
		u.PremiumExpiresAt = nil
		u.SubscriptionEnded = &now
		u.DeletionDueAt = &deletionAt
		revoked = true
	}

	return *u, revoked, nil
}

func (s *storeStub) List(_ context.Context, _ pgrepo.UserFilter) ([]model.User, int, error) {
	return nil, 0, nil
}

func (s *storeStub) Stats(_ context.Context, _ time.Time) (pgrepo.UserStats, error) {
	return pgrepo.UserStats{}, nil
}

func (s *storeStub) TopByDownloads(_ context.Context, _ int) ([]model.User, error) {
	return nil, nil
}

func (s *storeStub) ActivityByDay(_ context.Context, _ time.Time) ([]pgrepo.ActivityBucket, error) {
	return nil, nil
}

func (s *storeStub) Register(_ context.Context, _ int64, code string) (model.Referral, error) {
	s.registered = append(s.registered, code)
	return model.Referral{}, nil
}

func (s *storeStub) SendText(_ context.Context, chatID int64, _ string) error {
	s.notified = append(s.notified, chatID)
	return nil
}

func newServiceForTest(store *storeStub) *Service {
	svc := NewService(Dependencies{Store: store, Referrals: store, Notifier: store}, 3, 777, 24*time.Hour, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc
}

func TestBootstrapGrantsTrialOnce(t *testing.T) {
	store := newStoreStub()
	svc := newServiceForTest(store)
	ctx := context.Background()

	created, err := svc.Bootstrap(ctx, authsvc.TelegramProfile{ID: 42, Username: "alice", StartParam: "REF1"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if created.TrialExpiresAt == nil {
		t.Fatal("first sight must grant a trial")
	}
	wantEnd := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	if !created.TrialExpiresAt.Equal(wantEnd) {
		t.Fatalf("trial end = %v, want %v", created.TrialExpiresAt, wantEnd)
	}
	if len(store.registered) != 1 || store.registered[0] != "REF1" {
		t.Fatalf("referral code not registered: %v", store.registered)
	}

	again, err := svc.Bootstrap(ctx, authsvc.TelegramProfile{ID: 42, Username: "alice2", StartParam: "REF9"})
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if !again.TrialExpiresAt.Equal(*created.TrialExpiresAt) {
		t.Fatal("second sight must not restart the trial")
	}
	if len(store.registered) != 1 {
		t.Fatal("referral must only register on creation")
	}
	if store.users[42].Username != "alice2" {
		t.Fatal("profile should refresh on repeat login")
	}
}

func TestBootstrapOwnerIsAdmin(t *testing.T) {
	store := newStoreStub()
	svc := newServiceForTest(store)

	created, err := svc.Bootstrap(context.Background(), authsvc.TelegramProfile{ID: 777})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !created.IsAdmin || !created.IsPremiumPro {
		t.Fatalf("owner must be created elevated, got %+v", created)
	}
}

func TestBootstrapRestoresOwnerFlags(t *testing.T) {
	store := newStoreStub()
	svc := newServiceForTest(store)
	store.users[777] = &model.User{ID: 777, Username: "owner"}

	repaired, err := svc.Bootstrap(context.Background(), authsvc.TelegramProfile{ID: 777, Username: "owner"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !repaired.IsAdmin || !repaired.IsPremiumPro {
		t.Fatalf("owner flags must be restored on login, got %+v", repaired)
	}
	if !store.users[777].IsAdmin || !store.users[777].IsPremiumPro {
		t.Fatal("restored flags must be persisted")
	}
}

func TestGrantRevocationSchedulesDeletionAndNotifies(t *testing.T) {
	store := newStoreStub()
	svc := newServiceForTest(store)
	ctx := context.Background()

	if _, err := svc.Bootstrap(ctx, authsvc.TelegramProfile{ID: 42}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := svc.Grant(ctx, 42, GrantInput{PremiumDays: 30}); err != nil {
		t.Fatalf("grant premium: %v", err)
	}

	off := false
	updated, err := svc.Grant(ctx, 42, GrantInput{IsPremium: &off})
	if err != nil {
		t.Fatalf("revoke premium: %v", err)
	}
	if updated.IsPremium || updated.DeletionDueAt == nil {
		t.Fatalf("revocation must schedule deletion, got %+v", updated)
	}
	wantDue := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if !updated.DeletionDueAt.Equal(wantDue) {
		t.Fatalf("deletion due = %v, want %v", updated.DeletionDueAt, wantDue)
	}
	if len(store.notified) != 1 || store.notified[0] != 42 {
		t.Fatalf("user must be notified, got %v", store.notified)
	}
}

func TestGrantTrialDaysRestartsAndClearsWindow(t *testing.T) {
	store := newStoreStub()
	svc := newServiceForTest(store)
	ctx := context.Background()

	if _, err := svc.Bootstrap(ctx, authsvc.TelegramProfile{ID: 42}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	days := 7
	updated, err := svc.Grant(ctx, 42, GrantInput{TrialDays: &days})
	if err != nil {
		t.Fatalf("grant trial: %v", err)
	}
	wantEnd := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	if updated.TrialExpiresAt == nil || !updated.TrialExpiresAt.Equal(wantEnd) {
		t.Fatalf("trial end = %v, want %v", updated.TrialExpiresAt, wantEnd)
	}

	zero := 0
	updated, err = svc.Grant(ctx, 42, GrantInput{TrialDays: &zero})
	if err != nil {
		t.Fatalf("clear trial: %v", err)
	}
	if updated.TrialStartedAt != nil || updated.TrialExpiresAt != nil {
		t.Fatalf("zero days must clear the trial window, got %+v", updated)
	}
}

func TestGrantUnknownUser(t *testing.T) {
	svc := newServiceForTest(newStoreStub())

	on := true
	if _, err := svc.Grant(context.Background(), 9, GrantInput{IsPremium: &on}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}
