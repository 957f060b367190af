package links

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement_backend/platform/apperr"

	"github.com/redis/go-redis/v9"
)

const (
	codeAlphabet    = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 8
	shortKeyPrefix  = "shortlink:"
	maxCodeAttempts = 5
)

// RedisShortener maps random codes to long URLs with a TTL.
type RedisShortener struct {
	client  *redis.Client
	baseURL string
	ttl     time.Duration
}

func NewRedisShortener(client *redis.Client, baseURL string, ttl time.Duration) *RedisShortener {
	return &RedisShortener{client: client, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}
}

// Shorten stores longURL under a fresh code and returns the short URL.
func (s *RedisShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	for range maxCodeAttempts {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, shortKeyPrefix+code, longURL, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("store short link: %w", err)
		}
		if ok {
			return s.baseURL + "/s/" + code, nil
		}
	}
	return "", errors.New("could not allocate short link code")
}

// Resolve returns the long URL for code.
func (s *RedisShortener) Resolve(ctx context.Context, code string) (string, error) {
	if !validCode(code) {
		return "", apperr.NotFound("link not found")
	}
	val, err := s.client.Get(ctx, shortKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.NotFound("link not found")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "short link store unavailable", err)
	}
	return val, nil
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

func validCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}
