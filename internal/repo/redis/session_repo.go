package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
)

const (
	sessionPrefix        = "auth:sess:"
	refreshPrefix        = "auth:refresh:"
	sessionRefreshPrefix = "auth:sess_refresh:"
	userSessionsPrefix   = "auth:user_sess:"
)

// sessionPayload is the stored form of a session. The refresh key carries the
// same payload so a refresh lookup resolves without a second round trip.
type sessionPayload struct {
	SID       string `json:"sid"`
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}

func (p sessionPayload) record() authsvc.SessionRecord {
	return authsvc.SessionRecord{
		SID:       p.SID,
		UserID:    p.UserID,
		Role:      p.Role,
		ExpiresAt: time.Unix(p.ExpiresAt, 0).UTC(),
	}
}

type SessionRepo struct {
	client *goredis.Client
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) Create(ctx context.Context, session authsvc.SessionRecord, refreshToken string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(session.SID) == "" || strings.TrimSpace(refreshToken) == "" || session.UserID <= 0 {
		return authsvc.ErrInvalidInput
	}

	payload, err := encodeSession(session)
	if err != nil {
		return err
	}
	ttl := ttlFor(session.ExpiresAt)

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.SID), payload, ttl)
	pipe.Set(ctx, refreshKey(refreshToken), payload, ttl)
	pipe.Set(ctx, sessionRefreshKey(session.SID), refreshToken, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
	pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create redis session: %w", err)
	}

	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, sessionKey(sid)).Result()
	if err == goredis.Nil {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}

	return decodeSession(raw, authsvc.ErrSessionNotFound)
}

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, refreshKey(refreshToken)).Result()
	if err == goredis.Nil {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get refresh record: %w", err)
	}

	return decodeSession(raw, authsvc.ErrRefreshNotFound)
}

func (r *SessionRepo) RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	session, err := r.GetByRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		return err
	}
	if sid != "" && sid != session.SID {
		return authsvc.ErrRefreshNotFound
	}

	session.ExpiresAt = expiresAt
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}
	ttl := ttlFor(expiresAt)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, refreshKey(oldRefreshToken))
	pipe.Set(ctx, refreshKey(newRefreshToken), payload, ttl)
	pipe.Set(ctx, sessionKey(session.SID), payload, ttl)
	pipe.Set(ctx, sessionRefreshKey(session.SID), newRefreshToken, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
	pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sid string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return nil
	}

	session, err := r.GetSession(ctx, sid)
	if err != nil && err != authsvc.ErrSessionNotFound {
		return err
	}

	refreshToken, err := r.client.Get(ctx, sessionRefreshKey(sid)).Result()
	if err != nil && err != goredis.Nil {
		return fmt.Errorf("load session refresh pointer: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sid))
	pipe.Del(ctx, sessionRefreshKey(sid))
	if refreshToken != "" {
		pipe.Del(ctx, refreshKey(refreshToken))
	}
	if session.UserID > 0 {
		pipe.SRem(ctx, userSessionsKey(session.UserID), sid)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return authsvc.ErrInvalidInput
	}

	sids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	for _, sid := range sids {
		if err := r.DeleteSession(ctx, sid); err != nil {
			return err
		}
	}

	if err := r.client.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete user sessions key: %w", err)
	}

	return nil
}

func encodeSession(session authsvc.SessionRecord) (string, error) {
	data, err := json.Marshal(sessionPayload{
		SID:       session.SID,
		UserID:    session.UserID,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(data), nil
}

func decodeSession(raw string, missing error) (authsvc.SessionRecord, error) {
	var payload sessionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return authsvc.SessionRecord{}, missing
	}
	if payload.UserID <= 0 || strings.TrimSpace(payload.SID) == "" {
		return authsvc.SessionRecord{}, missing
	}
	return payload.record(), nil
}

func ttlFor(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func sessionKey(sid string) string {
	return sessionPrefix + sid
}

func refreshKey(token string) string {
	return refreshPrefix + token
}

func sessionRefreshKey(sid string) string {
	return sessionRefreshPrefix + sid
}

func userSessionsKey(userID int64) string {
	return userSessionsPrefix + strconv.FormatInt(userID, 10)
}
