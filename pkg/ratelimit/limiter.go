// Package ratelimit throttles HTTP clients with one token bucket per client
// address.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// DefaultIdleTTL is how long a client's bucket survives without requests.
const DefaultIdleTTL = time.Minute

// Config configures a Limiter.
type Config struct {
	// Rate is the sustained number of requests per second per client.
	Rate float64
	// Burst is the bucket capacity. Zero means twice the rate, at least 1.
	Burst int
	// TrustedProxies lists CIDR prefixes (or single addresses) whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies []string
	// IdleTTL overrides DefaultIdleTTL.
	IdleTTL time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Remaining is the number of whole tokens left after this request.
	Remaining int
	// RetryAfter is the wait until the next token when the request was
	// refused, or until the bucket is full again when it was allowed.
	RetryAfter time.Duration
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// Limiter is a per-client token bucket limiter. It is safe for concurrent
// use.
type Limiter struct {
	rate    float64
	burst   int
	idleTTL time.Duration
	proxies []netip.Prefix
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New builds a limiter. A non-positive rate is rejected by
// configuration validation; here it is clamped to one request per second.
func New(cfg Config) (*Limiter, error) {
	rate := cfg.Rate
	if rate <= 0 {
		rate = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(int(rate*2), 1)
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}

	l := &Limiter{
		rate:    rate,
		burst:   burst,
		idleTTL: ttl,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, p := range cfg.TrustedProxies {
		prefix, err := parsePrefix(p)
		if err != nil {
			return nil, err
		}
		l.proxies = append(l.proxies, prefix)
	}
	return l, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.burst
}

// Allow takes one token from the bucket of client.
func (l *Limiter) Allow(client string) Decision {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastSeen: now}
		l.buckets[client] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = min(b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate, float64(l.burst))
	b.lastSeen = now

	if b.tokens < 1 {
		return Decision{RetryAfter: l.wait(1 - b.tokens)}
	}
	b.tokens--
	return Decision{
		Allowed:    true,
		Remaining:  int(b.tokens),
		RetryAfter: l.wait(float64(l.burst) - b.tokens),
	}
}

// wait is the time needed to earn n tokens.
func (l *Limiter) wait(n float64) time.Duration {
	return time.Duration(n / l.rate * float64(time.Second))
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep forgets clients idle for longer than the idle TTL.
func (l *Limiter) Sweep() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for client, b := range l.buckets {
		b.mu.Lock()
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, client)
		}
		b.mu.Unlock()
	}
}

// Run sweeps idle clients every idle TTL until ctx is canceled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// ClientIP returns the address requests from r are accounted to. Forwarding
// headers are honoured only when the peer is a trusted proxy.
func (l *Limiter) ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !l.trusted(remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return remote
}

func (l *Limiter) trusted(remote string) bool {
	if len(l.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
