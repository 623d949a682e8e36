package dispatcher

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type RateLimitBucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimitMonitor mirrors the API's per-route rate-limit headers so the
// fast path can refuse locally instead of burning a request on a 429.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{buckets: make(map[string]*RateLimitBucket)}
}

func (rlm *RateLimitMonitor) CanExecute(route, guildID string) bool {
	rlm.mu.RLock()
	bucket, exists := rlm.buckets[route+":"+guildID]
	rlm.mu.RUnlock()

	if !exists || time.Now().After(bucket.ResetAt) {
		return true
	}
	return bucket.Remaining > 0
}

func (rlm *RateLimitMonitor) UpdateFromResponse(resp *fasthttp.Response, route, guildID string) {
	bucket := &RateLimitBucket{}
	if v := string(resp.Header.Peek("X-RateLimit-Remaining")); v != "" {
		bucket.Remaining, _ = strconv.Atoi(v)
	}
	if v := string(resp.Header.Peek("X-RateLimit-Limit")); v != "" {
		bucket.Limit, _ = strconv.Atoi(v)
	}
	if v := string(resp.Header.Peek("X-RateLimit-Reset")); v != "" {
		resetUnix, _ := strconv.ParseFloat(v, 64)
		bucket.ResetAt = time.Unix(int64(resetUnix), 0)
	}

	rlm.mu.Lock()
	rlm.buckets[route+":"+guildID] = bucket
	rlm.mu.Unlock()
}

func (rlm *RateLimitMonitor) Bucket(route, guildID string) *RateLimitBucket {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()
	return rlm.buckets[route+":"+guildID]
}
