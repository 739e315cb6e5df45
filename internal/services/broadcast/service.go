package broadcast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultSendInterval keeps the bot under Telegram's bulk-send ceiling
// of roughly 30 messages per second.
const defaultSendInterval = 50 * time.Millisecond

var (
	ErrEmptyMessage = errors.New("broadcast message is empty")
	ErrBusy         = errors.New("broadcast already running")
)

type AudienceStore interface {
	AllChatIDs(ctx context.Context) ([]int64, error)
}

type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Status is a snapshot of the broadcast in flight, or of the last
// finished one.
type Status struct {
	Running    bool      `json:"running"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Service pushes an admin message to every known chat. Only one
// broadcast runs at a time; sends are paced so Telegram does not start
// rejecting them.
type Service struct {
	audience AudienceStore
	sender   TextSender
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	status  Status
}

func NewService(audience AudienceStore, sender TextSender, interval time.Duration, log *zap.Logger) *Service {
	if interval <= 0 {
		interval = defaultSendInterval
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		audience: audience,
		sender:   sender,
		interval: interval,
		log:      log,
	}
}

// Start launches the broadcast in the background and returns the number
// of recipients it will try to reach. The passed context only covers the
// audience query; delivery runs on its own context so an admin request
// timeout does not cut the broadcast short.
func (s *Service) Start(ctx context.Context, message string) (int, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, ErrEmptyMessage
	}
	if s.audience == nil || s.sender == nil {
		return 0, errors.New("broadcast transport is not configured")
	}

	chatIDs, err := s.audience.AllChatIDs(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	s.running = true
	s.status = Status{
		Running:   true,
		Total:     len(chatIDs),
		StartedAt: time.Now(),
	}
	s.mu.Unlock()

	go s.run(chatIDs, message)

	return len(chatIDs), nil
}

// Status reports progress of the current or last broadcast.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Service) run(chatIDs []int64, message string) {
	ctx := context.Background()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	sent, failed := 0, 0
	for _, chatID := range chatIDs {
		<-ticker.C

		if err := s.sender.SendText(ctx, chatID, message); err != nil {
			failed++
			// Blocked bots and deleted accounts land here; keep going.
			s.log.Debug("broadcast send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		} else {
			sent++
		}

		s.mu.Lock()
		s.status.Sent = sent
		s.status.Failed = failed
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.status.FinishedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("broadcast finished",
		zap.Int("total", len(chatIDs)),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
}
