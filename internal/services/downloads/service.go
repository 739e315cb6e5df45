package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	"github.com/tunngle1/newversionmusicbot/internal/domain/rules"
)

// maxAudioBytes caps a single track download; Telegram rejects bigger
// uploads anyway.
const maxAudioBytes = 50 << 20

var (
	ErrNoAccess    = errors.New("no access")
	ErrBadRequest  = errors.New("invalid download request")
	ErrRateLimited = errors.New("download rate limited")
)

type AudioSender interface {
	SendAudio(ctx context.Context, chatID int64, fileName string, audio []byte, title, performer string, duration int, protect bool) (int, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	IncrementDownloadCount(ctx context.Context, id int64) error
}

type DeliveredStore interface {
	Record(ctx context.Context, d model.DeliveredTrack, now time.Time) error
}

type DownloadLimiter interface {
	AllowDownload(ctx context.Context, userID int64) (int64, bool, error)
}

// Service delivers tracks into the user's Telegram chat. Content sent to
// anyone below the pro tier is protected against forwarding.
type Service struct {
	sender     AudioSender
	users      UserStore
	delivered  DeliveredStore
	limiter    DownloadLimiter
	httpClient *http.Client
	referer    string
	log        *zap.Logger
	now        func() time.Time
}

type Dependencies struct {
	Sender     AudioSender
	Users      UserStore
	Delivered  DeliveredStore
	Limiter    DownloadLimiter
	HTTPClient *http.Client
	Referer    string
}

func NewService(deps Dependencies, log *zap.Logger) *Service {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		sender:     deps.Sender,
		users:      deps.Users,
		delivered:  deps.Delivered,
		limiter:    deps.Limiter,
		httpClient: deps.HTTPClient,
		referer:    deps.Referer,
		log:        log,
		now:        time.Now,
	}
}

type Input struct {
	URL      string
	TrackID  string
	Title    string
	Artist   string
	Duration int
}

type Result struct {
	MessageID  int   `json:"message_id"`
	Protected  bool  `json:"protected"`
	RetryAfter int64 `json:"retry_after,omitempty"`
}

// SendToChat fetches the track audio and posts it to the user's own chat,
// recording the message for later revocation.
func (s *Service) SendToChat(ctx context.Context, userID int64, in Input) (Result, error) {
	if userID <= 0 || strings.TrimSpace(in.URL) == "" {
		return Result{}, ErrBadRequest
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load user for download: %w", err)
	}

	decision := rules.EvaluateAccess(user, s.now())
	if !decision.HasAccess {
		return Result{}, ErrNoAccess
	}

	// Admins are not throttled.
	if s.limiter != nil && !user.IsAdmin {
		retryAfter, allowed, err := s.limiter.AllowDownload(ctx, userID)
		if err != nil {
			s.log.Warn("download limiter failed", zap.Int64("user_id", userID), zap.Error(err))
		} else if !allowed {
			return Result{RetryAfter: retryAfter}, ErrRateLimited
		}
	}

	audio, err := s.fetchAudio(ctx, in.URL)
	if err != nil {
		return Result{}, err
	}

	protect := !(user.IsPremiumPro || user.IsAdmin)
	fileName := fmt.Sprintf("%s - %s.mp3", in.Artist, in.Title)
	messageID, err := s.sender.SendAudio(ctx, userID, fileName, audio, in.Title, in.Artist, in.Duration, protect)
	if err != nil {
		return Result{}, fmt.Errorf("send audio: %w", err)
	}

	now := s.now()
	if err := s.delivered.Record(ctx, model.DeliveredTrack{
		UserID:    userID,
		ChatID:    userID,
		MessageID: messageID,
		TrackID:   in.TrackID,
	}, now); err != nil {
		s.log.Error("record delivered track failed",
			zap.Int64("user_id", userID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
	if err := s.users.IncrementDownloadCount(ctx, userID); err != nil {
		s.log.Warn("download counter failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	return Result{MessageID: messageID, Protected: protect}, nil
}

func (s *Service) fetchAudio(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create audio request: %w", err)
	}
	if s.referer != "" {
		req.Header.Set("Referer", s.referer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio source returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio source returned empty body")
	}

	return audio, nil
}
