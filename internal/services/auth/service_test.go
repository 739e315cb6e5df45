package auth_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	redrepo "github.com/tunngle1/newversionmusicbot/internal/repo/redis"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
)

const testBotToken = "12345:test-bot-token"

type stubBootstrapper struct {
	lastProfile authsvc.TelegramProfile
	admin       bool
	blocked     bool
}

func (s *stubBootstrapper) Bootstrap(_ context.Context, profile authsvc.TelegramProfile) (model.User, error) {
	s.lastProfile = profile
	return model.User{ID: profile.ID, Username: profile.Username, IsAdmin: s.admin, IsBlocked: s.blocked}, nil
}

func signedInitData(t *testing.T, userID int64, startParam string) string {
	t.Helper()

	values := url.Values{}
	values.Set("user", fmt.Sprintf(`{"id":%d,"username":"u%d","first_name":"Test"}`, userID, userID))
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	if startParam != "" {
		values.Set("start_param", startParam)
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))

	return values.Encode()
}

func TestLoginTelegramBootstrapsUser(t *testing.T) {
	svc, users, cleanup := newAuthServiceForTest(t, 0)
	defer cleanup()

	ctx := context.Background()
	res, err := svc.LoginTelegram(ctx, signedInitData(t, 1001, "REF42"))
	if err != nil {
		t.Fatalf("login telegram: %v", err)
	}

	if res.Me.ID != 1001 || res.Me.Role != "user" {
		t.Fatalf("unexpected identity %+v", res.Me)
	}
	if users.lastProfile.StartParam != "REF42" {
		t.Fatalf("start param not propagated: %+v", users.lastProfile)
	}
	if _, err := svc.ValidateAccessToken(ctx, res.AccessToken); err != nil {
		t.Fatalf("validate access token: %v", err)
	}
}

func TestLoginTelegramRejectsBadSignature(t *testing.T) {
	svc, _, cleanup := newAuthServiceForTest(t, 0)
	defer cleanup()

	initData := signedInitData(t, 1001, "")
	tampered := strings.Replace(initData, "1001", "2002", 1)

	if _, err := svc.LoginTelegram(context.Background(), tampered); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("tampered init data should be unauthorized, got err=%v", err)
	}
}

func TestLoginTelegramRejectsBlockedUser(t *testing.T) {
	svc, users, cleanup := newAuthServiceForTest(t, 0)
	defer cleanup()

	users.blocked = true

	res, err := svc.LoginTelegram(context.Background(), signedInitData(t, 3003, ""))
	if !errors.Is(err, authsvc.ErrBlocked) {
		t.Fatalf("blocked user should be refused, got err=%v", err)
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatalf("blocked user must not receive tokens: %+v", res)
	}
}

func TestOwnerGetsAdminRole(t *testing.T) {
	svc, _, cleanup := newAuthServiceForTest(t, 777)
	defer cleanup()

	res, err := svc.LoginTelegram(context.Background(), signedInitData(t, 777, ""))
	if err != nil {
		t.Fatalf("login telegram: %v", err)
	}
	if res.Me.Role != "admin" {
		t.Fatalf("owner should be admin, got role %q", res.Me.Role)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _, cleanup := newAuthServiceForTest(t, 0)
	defer cleanup()

	ctx := context.Background()
	loginRes, err := svc.LoginTelegram(ctx, signedInitData(t, 1001, ""))
	if err != nil {
		t.Fatalf("login telegram: %v", err)
	}

	refreshRes, err := svc.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if refreshRes.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("old refresh token should be unauthorized, got err=%v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, refreshRes.AccessToken); err != nil {
		t.Fatalf("new access token validation failed: %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _, cleanup := newAuthServiceForTest(t, 0)
	defer cleanup()

	ctx := context.Background()
	loginRes, err := svc.LoginTelegram(ctx, signedInitData(t, 2002, ""))
	if err != nil {
		t.Fatalf("login telegram: %v", err)
	}

	claims, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token before logout: %v", err)
	}

	if err := svc.Logout(ctx, claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("access token should be unauthorized after logout, got err=%v", err)
	}
}

func newAuthServiceForTest(t *testing.T, ownerID int64) (*authsvc.Service, *stubBootstrapper, func()) {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	repo := redrepo.NewSessionRepo(client)
	users := &stubBootstrapper{}
	jwtManager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	svc := authsvc.NewService(jwtManager, repo, users, testBotToken, ownerID, 45*24*time.Hour)

	cleanup := func() {
		_ = client.Close()
		mini.Close()
	}

	return svc, users, cleanup
}
