package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"golang.org/x/time/rate"
)

const (
	limiterIdle  = time.Hour
	limiterSweep = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per caller identity.
type limiterSet struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:   limit,
		burst:   max(burst, 1),
		entries: make(map[string]*limiterEntry),
	}
}

func (s *limiterSet) get(identity string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[identity] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweep forgets identities not seen since cutoff.
func (s *limiterSet) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}

func (s *limiterSet) sweepLoop() {
	ticker := time.NewTicker(limiterSweep)
	defer ticker.Stop()
	for range ticker.C {
		s.sweep(time.Now().Add(-limiterIdle))
	}
}

// identityOf prefers the API key set by Auth and falls back to client IP.
func identityOf(c *gin.Context) string {
	if key, ok := c.Get(APIKeyContextKey); ok {
		if s, ok := key.(string); ok && s != "" {
			return s
		}
	}
	return c.ClientIP()
}

func rateLimited(c *gin.Context, retryAfter time.Duration, message string) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: models.ErrCodeRateLimited, Message: message},
	})
}

// RateLimit applies the general per-identity request rate to every API call.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	set := newLimiterSet(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	go set.sweepLoop()

	return func(c *gin.Context) {
		if !set.get(identityOf(c), time.Now()).Allow() {
			rateLimited(c, 0, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}

// SubmissionLimit guards fitment job submission with its own, much slower
// bucket: every job holds the single browser session for minutes. Rejected
// callers get a Retry-After header telling them when the next token lands.
func SubmissionLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	set := newLimiterSet(rate.Limit(cfg.FitmentPerHour/3600), cfg.FitmentBurst)
	go set.sweepLoop()

	return func(c *gin.Context) {
		now := time.Now()
		r := set.get(identityOf(c), now).ReserveN(now, 1)
		if !r.OK() {
			rateLimited(c, 0, "fitment submissions are disabled for this key")
			return
		}
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			rateLimited(c, delay, "too many fitment jobs, retry later")
			return
		}
		c.Next()
	}
}
