package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	"github.com/tunngle1/newversionmusicbot/internal/domain/rules"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
}

// Service answers "does this user have access right now, and why".
type Service struct {
	users UserStore
	now   func() time.Time
}

func NewService(users UserStore) *Service {
	return &Service{users: users, now: time.Now}
}

type Status struct {
	User     model.User
	Decision rules.AccessDecision
}

func (s *Service) StatusFor(ctx context.Context, userID int64) (Status, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("load user for entitlement: %w", err)
	}

	return Status{
		User:     user,
		Decision: rules.EvaluateAccess(user, s.now()),
	}, nil
}
