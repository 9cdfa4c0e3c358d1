package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	domainRepo "github.com/sangkips/quotation-api/internal/domain/repository"
)

const (
	otpKeyPrefix       = "otp:"
	usedTokenKeyPrefix = "token-used:"
	fieldHash          = "hash"
	fieldAttempts      = "attempts"
)

type otpStore struct {
	client      redis.Cmdable
	ttl         time.Duration
	maxAttempts int
}

// NewOTPStore keeps reset codes in redis under otp:<email> for ttl.
func NewOTPStore(client redis.Cmdable, ttl time.Duration, maxAttempts int) domainRepo.OTPRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &otpStore{client: client, ttl: ttl, maxAttempts: maxAttempts}
}

func otpKey(email string) string {
	return otpKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

func (s *otpStore) Save(ctx context.Context, email, codeHash string) error {
	key := otpKey(email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldHash, codeHash, fieldAttempts, 0)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func (s *otpStore) Verify(ctx context.Context, email string, match func(codeHash string) bool) error {
	key := otpKey(email)
	hash, err := s.client.HGet(ctx, key, fieldHash).Result()
	if errors.Is(err, redis.Nil) {
		return domainRepo.ErrOTPNotFound
	}
	if err != nil {
		return err
	}

	attempts, err := s.client.HIncrBy(ctx, key, fieldAttempts, 1).Result()
	if err != nil {
		return err
	}
	if attempts > int64(s.maxAttempts) {
		_ = s.client.Del(ctx, key).Err()
		return domainRepo.ErrOTPAttemptsExceeded
	}
	if !match(hash) {
		return domainRepo.ErrOTPMismatch
	}

	// Only one verifier may consume the code.
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domainRepo.ErrOTPNotFound
	}
	return nil
}

func (s *otpStore) ConsumeToken(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.SetNX(ctx, usedTokenKeyPrefix+tokenID, 1, ttl).Result()
}
