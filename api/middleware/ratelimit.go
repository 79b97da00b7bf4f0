package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	// maxIdentities bounds the limiters held at once.
	maxIdentities = 4096

	// idleTTL drops a limiter not used for this long.
	idleTTL = time.Hour
)

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate. Rejected requests get a
// Retry-After header.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := expirable.NewLRU[string, *rate.Limiter](maxIdentities, nil, idleTTL)

	getLimiter := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters.Get(identity)
		if !ok {
			l = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		}
		// Re-adding refreshes the idle TTL.
		limiters.Add(identity, l)
		return l
	}

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.GetString(identityKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		r := getLimiter(identity).Reserve()
		if !r.OK() || r.Delay() > 0 {
			retry := time.Duration(math.MaxInt64)
			if r.OK() {
				retry = r.Delay()
				r.Cancel()
			}
			if retry < time.Duration(math.MaxInt64) {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
