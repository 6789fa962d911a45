package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// PerUser gives every user a token bucket of limit messages per window. Buckets of
// users that stay quiet for two windows are swept by the cache janitor.
type PerUser struct {
	mu      sync.Mutex
	buckets *gocache.Cache
	every   rate.Limit
	burst   int
	now     func() time.Time
}

func NewPerUser(limit int, window time.Duration) *PerUser {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &PerUser{
		buckets: gocache.New(2*window, window),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		now:     time.Now,
	}
}

func (l *PerUser) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var bucket *rate.Limiter
	if raw, ok := l.buckets.Get(userID); ok {
		bucket = raw.(*rate.Limiter)
	} else {
		bucket = rate.NewLimiter(l.every, l.burst)
	}
	// Re-setting slides the expiry forward on every message.
	l.buckets.SetDefault(userID, bucket)
	return bucket.AllowN(l.now(), 1)
}

// Tracked returns how many users currently hold a bucket.
func (l *PerUser) Tracked() int {
	return l.buckets.ItemCount()
}
