package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	refreshTokenBytes = 32
	sessionIDBytes    = 20
)

func newOpaqueToken(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return hex.EncodeToString(b), nil
}

func NewRefreshToken() (string, error) {
	return newOpaqueToken(refreshTokenBytes)
}

func NewSessionID() (string, error) {
	return newOpaqueToken(sessionIDBytes)
}
