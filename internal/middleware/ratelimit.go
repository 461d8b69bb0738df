package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/pkg/clientip"
)

const (
	// PurchaseRateWindow bounds how many unlock attempts one IP can make.
	PurchaseRateWindow = 60 * time.Second
	// PurchaseRateMaxRequests is the cap inside one window.
	PurchaseRateMaxRequests = 30
	// PurchaseRateKeyPrefix is the Redis key prefix for purchase limiting.
	PurchaseRateKeyPrefix = "ratelimit:purchase:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs.
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked.
	BlockedIPDuration = 24 * time.Hour
)

// PurchaseRateLimit throttles unlock and top-up attempts per IP with a fixed
// Redis window, blocking abusive IPs outright. Fails open when Redis is down
// so payments never hard-depend on the cache.
func PurchaseRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ipAddress := clientip.RealClientIP(r)
		ctx := context.Background()

		blockedKey := BlockedIPKeyPrefix + ipAddress
		isBlocked, err := database.RedisClient.Exists(ctx, blockedKey).Result()
		if err == nil && isBlocked > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Your IP has been temporarily blocked due to excessive requests. Please try again later."}`))
			return
		}

		rateLimitKey := PurchaseRateKeyPrefix + ipAddress
		currentCount, err := database.RedisClient.Get(ctx, rateLimitKey).Int()
		if err != nil {
			currentCount = 0
		}
		newCount := currentCount + 1

		if currentCount == 0 {
			err = database.RedisClient.Set(ctx, rateLimitKey, "1", PurchaseRateWindow).Err()
		} else {
			err = database.RedisClient.Incr(ctx, rateLimitKey).Err()
			if err == nil {
				database.RedisClient.Expire(ctx, rateLimitKey, PurchaseRateWindow)
			}
		}
		if err != nil {
			// Fail open when Redis is unavailable.
			next.ServeHTTP(w, r)
			return
		}

		if newCount > PurchaseRateMaxRequests {
			database.RedisClient.Set(ctx, blockedKey, "1", BlockedIPDuration)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(fmt.Sprintf(`{"success":false,"message":"Rate limit exceeded. Your IP has been temporarily blocked. Please try again later.","retry_after":%d}`, int(PurchaseRateWindow.Seconds()))))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(PurchaseRateMaxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(PurchaseRateMaxRequests-newCount))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(PurchaseRateWindow).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}
