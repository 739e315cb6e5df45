package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

// Job removes delivered tracks from the chats of users whose premium
// lapsed and whose grace window has run out. Deleting the Telegram
// messages revokes the files; the delivered rows go next so a later
// re-subscribe starts from a clean slate.
type Job struct {
	users     UserStore
	delivered DeliveredStore
	messenger Messenger
	now       func() time.Time
	logger    *zap.Logger
}

type UserStore interface {
	DueForCleanup(ctx context.Context, now time.Time) ([]model.User, error)
	ClearDeletionSchedule(ctx context.Context, id int64) error
}

type DeliveredStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.DeliveredTrack, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

type Messenger interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendText(ctx context.Context, chatID int64, text string) error
}

func New(users UserStore, delivered DeliveredStore, messenger Messenger, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		users:     users,
		delivered: delivered,
		messenger: messenger,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.users == nil || j.delivered == nil {
		return nil
	}

	due, err := j.users.DueForCleanup(ctx, j.now())
	if err != nil {
		return fmt.Errorf("list users due for cleanup: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	removedTracks := 0
	for _, user := range due {
		tracks, err := j.delivered.ListByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list delivered tracks for user %d: %w", user.ID, err)
		}

		for _, track := range tracks {
			if j.messenger == nil {
				continue
			}
			if err := j.messenger.DeleteMessage(ctx, track.ChatID, track.MessageID); err != nil {
				// Users delete messages themselves; a missing one is fine.
				j.logger.Debug("delete delivered message failed",
					zap.Int64("chat_id", track.ChatID),
					zap.Int("message_id", track.MessageID),
					zap.Error(err))
			}
		}

		if err := j.delivered.DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("drop delivered rows for user %d: %w", user.ID, err)
		}
		if err := j.users.ClearDeletionSchedule(ctx, user.ID); err != nil {
			return fmt.Errorf("clear deletion schedule for user %d: %w", user.ID, err)
		}

		if j.messenger != nil && len(tracks) > 0 {
			text := "Your premium has ended, so the tracks saved to this chat were removed. Renew to get them back."
			if err := j.messenger.SendText(ctx, user.ID, text); err != nil {
				j.logger.Debug("cleanup notice failed", zap.Int64("user_id", user.ID), zap.Error(err))
			}
		}

		removedTracks += len(tracks)
	}

	j.logger.Info("expired track cleanup completed",
		zap.Int("users", len(due)),
		zap.Int("tracks", removedTracks))
	return nil
}
