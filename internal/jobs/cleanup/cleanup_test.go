package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

type userStoreStub struct {
	due     []model.User
	cleared []int64
}

func (u *userStoreStub) DueForCleanup(_ context.Context, _ time.Time) ([]model.User, error) {
	return u.due, nil
}

func (u *userStoreStub) ClearDeletionSchedule(_ context.Context, id int64) error {
	u.cleared = append(u.cleared, id)
	return nil
}

type deliveredStub struct {
	byUser  map[int64][]model.DeliveredTrack
	dropped []int64
}

func (d *deliveredStub) ListByUser(_ context.Context, userID int64) ([]model.DeliveredTrack, error) {
	return d.byUser[userID], nil
}

func (d *deliveredStub) DeleteByUser(_ context.Context, userID int64) error {
	d.dropped = append(d.dropped, userID)
	delete(d.byUser, userID)
	return nil
}

type messengerStub struct {
	deleted []int
	failOn  map[int]bool
	notices []int64
}

func (m *messengerStub) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	if m.failOn[messageID] {
		return errors.New("message to delete not found")
	}
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *messengerStub) SendText(_ context.Context, chatID int64, _ string) error {
	m.notices = append(m.notices, chatID)
	return nil
}

func TestRunRevokesTracksForDueUsers(t *testing.T) {
	users := &userStoreStub{due: []model.User{{ID: 10}, {ID: 20}}}
	delivered := &deliveredStub{byUser: map[int64][]model.DeliveredTrack{
		10: {
			{UserID: 10, ChatID: 10, MessageID: 100},
			{UserID: 10, ChatID: 10, MessageID: 101},
		},
		20: {
			{UserID: 20, ChatID: 20, MessageID: 200},
		},
	}}
	messenger := &messengerStub{}

	job := New(users, delivered, messenger, nil)
	job.now = func() time.Time { return time.Date(2026, time.March, 1, 4, 0, 0, 0, time.UTC) }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	if len(messenger.deleted) != 3 {
		t.Fatalf("deleted %d messages, want 3", len(messenger.deleted))
	}
	if len(delivered.dropped) != 2 || len(users.cleared) != 2 {
		t.Fatalf("dropped=%v cleared=%v, want both users processed", delivered.dropped, users.cleared)
	}
	if len(messenger.notices) != 2 {
		t.Fatalf("notices sent to %v, want both users", messenger.notices)
	}
}

func TestRunSurvivesAlreadyDeletedMessages(t *testing.T) {
	users := &userStoreStub{due: []model.User{{ID: 10}}}
	delivered := &deliveredStub{byUser: map[int64][]model.DeliveredTrack{
		10: {
			{UserID: 10, ChatID: 10, MessageID: 100},
			{UserID: 10, ChatID: 10, MessageID: 101},
		},
	}}
	messenger := &messengerStub{failOn: map[int]bool{100: true}}

	job := New(users, delivered, messenger, nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	if len(delivered.dropped) != 1 || len(users.cleared) != 1 {
		t.Fatal("cleanup must finish even when a message is already gone")
	}
}

func TestRunIsNoOpWithoutDueUsers(t *testing.T) {
	users := &userStoreStub{}
	delivered := &deliveredStub{byUser: map[int64][]model.DeliveredTrack{}}
	messenger := &messengerStub{}

	job := New(users, delivered, messenger, nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if len(messenger.deleted) != 0 || len(messenger.notices) != 0 {
		t.Fatal("nothing should be touched when no user is due")
	}
}
