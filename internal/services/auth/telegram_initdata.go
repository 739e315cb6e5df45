package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// initDataMaxAge bounds how old a signed init data payload may be before it
// is rejected as a replay.
const initDataMaxAge = 24 * time.Hour

// TelegramProfile is the identity carried inside validated Mini App init data.
type TelegramProfile struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	StartParam string
}

// ParseTelegramInitData verifies the Mini App init data signature against the
// bot token per the WebAppData scheme and returns the embedded user profile.
func ParseTelegramInitData(initData, botToken string, now time.Time) (TelegramProfile, error) {
	trimmed := strings.TrimSpace(initData)
	if trimmed == "" {
		return TelegramProfile{}, fmt.Errorf("init data is empty: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(botToken) == "" {
		return TelegramProfile{}, fmt.Errorf("bot token is not configured")
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return TelegramProfile{}, fmt.Errorf("malformed init data: %w", ErrInvalidInput)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return TelegramProfile{}, fmt.Errorf("init data hash is missing: %w", ErrInvalidInput)
	}
	values.Del("hash")

	if !hmac.Equal([]byte(gotHash), []byte(initDataHash(values, botToken))) {
		return TelegramProfile{}, ErrUnauthorized
	}

	if rawDate := values.Get("auth_date"); rawDate != "" {
		authDate, parseErr := strconv.ParseInt(rawDate, 10, 64)
		if parseErr != nil {
			return TelegramProfile{}, fmt.Errorf("malformed auth_date: %w", ErrInvalidInput)
		}
		if now.Sub(time.Unix(authDate, 0)) > initDataMaxAge {
			return TelegramProfile{}, ErrUnauthorized
		}
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return TelegramProfile{}, fmt.Errorf("init data user is missing: %w", ErrInvalidInput)
	}

	var payload struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal([]byte(rawUser), &payload); err != nil || payload.ID <= 0 {
		return TelegramProfile{}, fmt.Errorf("malformed init data user: %w", ErrInvalidInput)
	}

	return TelegramProfile{
		ID:         payload.ID,
		Username:   payload.Username,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		StartParam: values.Get("start_param"),
	}, nil
}

// initDataHash computes the expected signature: the data-check-string is the
// sorted key=value list joined by newlines, keyed by HMAC("WebAppData", token).
func initDataHash(values url.Values, botToken string) string {
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
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	return hex.EncodeToString(mac.Sum(nil))
}
