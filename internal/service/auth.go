package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

const tokenLifetime = 7 * 24 * time.Hour

// AuthService guards the control surface with a single admin password.
// Session tokens are HMAC-signed timestamps.
type AuthService struct {
	passwordHash []byte
	secretKey    string
}

func NewAuthService(password, secretKey string) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		passwordHash: hash,
		secretKey:    secretKey,
	}, nil
}

func (s *AuthService) ValidatePassword(password string) bool {
	return bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
}

func (s *AuthService) GenerateToken() string {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	return timestamp + ":" + s.sign(timestamp)
}

func (s *AuthService) ValidateToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return ErrInvalidToken
	}

	timestamp, signature := parts[0], parts[1]
	if !hmac.Equal([]byte(signature), []byte(s.sign(timestamp))) {
		return ErrInvalidToken
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if time.Now().After(time.Unix(ts, 0).Add(tokenLifetime)) {
		return ErrExpiredToken
	}

	return nil
}

func (s *AuthService) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(payload))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
