// Package ratelimit implements per-host token bucket admission for preview requests.
package ratelimit

import (
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/link-unfurler/internal/metrics"
)

const defaultMaxHosts = 10000

// Limiter admits or rejects requests per target host.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	maxHosts     int
}

// Config holds rate limiter configuration.
type Config struct {
	// PerHostRPS is the sustained rate per host. Zero or less disables limiting.
	PerHostRPS float64
	Burst      int
	// MaxHosts bounds the number of tracked hosts. The table is reset when full.
	MaxHosts int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.PerHostRPS)
	if cfg.PerHostRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxHosts := cfg.MaxHosts
	if maxHosts <= 0 {
		maxHosts = defaultMaxHosts
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		maxHosts:     maxHosts,
	}
}

// Allow reports whether a preview of rawURL may proceed now. It never blocks.
func (l *Limiter) Allow(rawURL string) bool {
	if l.defaultRate == rate.Inf {
		return true
	}
	host := hostOf(rawURL)

	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		if len(l.limiters) >= l.maxHosts {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	if limiter.Allow() {
		return true
	}
	metrics.ObserveRateLimited()
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
