package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/redis/go-redis/v9"
)

// cachedCheckoutService caches purchase history reads; any checkout attempt
// invalidates the tourist's entry, since both commit and compensation change
// the token set a history read may have observed mid-saga.
type cachedCheckoutService struct {
	next        CheckoutService
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewCachedCheckoutService(next CheckoutService, redisClient *redis.Client, cacheTTL time.Duration) CheckoutService {
	return &cachedCheckoutService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

func (s *cachedCheckoutService) Checkout(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error) {
	tokens, err := s.next.Checkout(ctx, touristID)

	s.redisClient.Del(context.WithoutCancel(ctx), historyKey(touristID))

	return tokens, err
}

func (s *cachedCheckoutService) History(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error) {
	key := historyKey(touristID)

	val, err := s.redisClient.Get(ctx, key).Result()
	if err == nil {
		var tokens []*domain.PurchaseToken
		if err := json.Unmarshal([]byte(val), &tokens); err == nil {
			return tokens, nil
		}
	}

	tokens, err := s.next.History(ctx, touristID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tokens); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}

	return tokens, nil
}

func historyKey(touristID string) string {
	return fmt.Sprintf("purchase_tokens:%s", touristID)
}
