// Package ratelimit provides keyed token-bucket limiters for inbound traffic.
package ratelimit

import (
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused bucket is kept before it is evicted.
const idleTTL = 30 * time.Minute

type Limiter interface {
	Allow(key string) bool
}

type tokenBucketLimiter struct {
	buckets         *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond float64
	burst           int
}

// NewTokenBucket returns a limiter with one bucket per key and a stop
// function that ends the cache's eviction loop.
func NewTokenBucket(refillPerSecond float64, burst int) (Limiter, func()) {
	cache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](idleTTL),
	)
	go cache.Start()

	return &tokenBucketLimiter{
		buckets:         cache,
		refillPerSecond: refillPerSecond,
		burst:           burst,
	}, cache.Stop
}

func (l *tokenBucketLimiter) Allow(key string) bool {
	item, _ := l.buckets.GetOrSet(key, rate.NewLimiter(rate.Limit(l.refillPerSecond), l.burst))
	return item.Value().Allow()
}

// KeyFunc maps a request to its bucket key.
type KeyFunc func(r *http.Request) string

// IPKey keys by client address. Behind a proxy, chi's RealIP middleware must
// run first so RemoteAddr holds the forwarded address.
func IPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip: " + host
}
