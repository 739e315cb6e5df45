package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type audienceStub struct {
	chatIDs []int64
}

func (a *audienceStub) AllChatIDs(_ context.Context) ([]int64, error) {
	return a.chatIDs, nil
}

type senderStub struct {
	mu     sync.Mutex
	sent   []int64
	failAt map[int64]bool
}

func (s *senderStub) SendText(_ context.Context, chatID int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt[chatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	s.sent = append(s.sent, chatID)
	return nil
}

func (s *senderStub) sentIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.sent))
	copy(out, s.sent)
	return out
}

func waitForFinish(t *testing.T, svc *Service) Status {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := svc.Status()
		if !st.Running && !st.StartedAt.IsZero() && !st.FinishedAt.IsZero() {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("broadcast did not finish in time")
	return Status{}
}

func TestStartDeliversToEveryChat(t *testing.T) {
	audience := &audienceStub{chatIDs: []int64{1, 2, 3}}
	sender := &senderStub{}
	svc := NewService(audience, sender, time.Millisecond, nil)

	total, err := svc.Start(context.Background(), "maintenance tonight")
	if err != nil {
		t.Fatalf("start broadcast: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}

	st := waitForFinish(t, svc)
	if st.Sent != 3 || st.Failed != 0 {
		t.Fatalf("status sent=%d failed=%d, want 3/0", st.Sent, st.Failed)
	}
	if got := sender.sentIDs(); len(got) != 3 {
		t.Fatalf("delivered to %v, want all three chats", got)
	}
}

func TestStartCountsBlockedChatsAsFailed(t *testing.T) {
	audience := &audienceStub{chatIDs: []int64{1, 2, 3}}
	sender := &senderStub{failAt: map[int64]bool{2: true}}
	svc := NewService(audience, sender, time.Millisecond, nil)

	if _, err := svc.Start(context.Background(), "hello"); err != nil {
		t.Fatalf("start broadcast: %v", err)
	}

	st := waitForFinish(t, svc)
	if st.Sent != 2 || st.Failed != 1 {
		t.Fatalf("status sent=%d failed=%d, want 2/1", st.Sent, st.Failed)
	}
}

func TestStartRejectsEmptyMessage(t *testing.T) {
	svc := NewService(&audienceStub{}, &senderStub{}, time.Millisecond, nil)

	if _, err := svc.Start(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
}

func TestStartRefusesConcurrentRun(t *testing.T) {
	audience := &audienceStub{chatIDs: []int64{1, 2, 3, 4, 5}}
	sender := &senderStub{}
	svc := NewService(audience, sender, 20*time.Millisecond, nil)

	if _, err := svc.Start(context.Background(), "first"); err != nil {
		t.Fatalf("start first broadcast: %v", err)
	}
	if _, err := svc.Start(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}

	waitForFinish(t, svc)
}
