package resilience

import (
	"sync"
	"time"
)

// TierBreaker skips a data-source tier after repeated consecutive
// failures, so a dead backend stops eating per-call latency (and, for the
// paid tier, money) on every resolution. After the cooldown one probe call
// is allowed through; success closes the breaker again.
type TierBreaker struct {
	mu       sync.Mutex
	failures int
	openedAt time.Time

	threshold int
	cooldown  time.Duration
	nowFunc   func() time.Time
}

// NewTierBreaker creates a breaker that opens after threshold consecutive
// failures and allows a probe after cooldown.
func NewTierBreaker(threshold int, cooldown time.Duration) *TierBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &TierBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (b *TierBreaker) WithNow(now func() time.Time) *TierBreaker {
	b.nowFunc = now
	return b
}

// Allow reports whether a call to the tier should proceed.
func (b *TierBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	// Open: allow a single probe once the cooldown has elapsed. The probe
	// resets the window so concurrent callers don't stampede.
	if b.nowFunc().Sub(b.openedAt) >= b.cooldown {
		b.openedAt = b.nowFunc()
		return true
	}
	return false
}

// Record feeds a call result into the breaker.
func (b *TierBreaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == b.threshold {
		b.openedAt = b.nowFunc()
	}
}

// Failures returns the consecutive failure count, for observability.
func (b *TierBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
