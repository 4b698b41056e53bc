package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ==================== ClientLimiter 客户端限流器 ====================

// ClientLimiter 按客户端（IP）维度的令牌桶限流
type ClientLimiter struct {
	perMinute int
	burst     int
	clients   sync.Map // key -> *clientEntry
	now       func() time.Time
}

// clientEntry 限流条目
type clientEntry struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewClientLimiter perMinute <= 0 时不限流
func NewClientLimiter(perMinute int) *ClientLimiter {
	return &ClientLimiter{perMinute: perMinute, burst: perMinute, now: time.Now}
}

// Enabled 是否开启限流
func (l *ClientLimiter) Enabled() bool {
	return l.perMinute > 0
}

// Allow 消耗一个令牌；不允许时返回需要等待的时间
func (l *ClientLimiter) Allow(key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}

	actual, _ := l.clients.LoadOrStore(key, &clientEntry{
		limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60), l.burst),
	})
	entry := actual.(*clientEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := l.now()
	entry.lastSeen = now

	r := entry.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup 清理 idle 时间内未访问的客户端，返回清理数量
func (l *ClientLimiter) Cleanup(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	removed := 0

	l.clients.Range(func(key, value any) bool {
		entry := value.(*clientEntry)
		entry.mu.Lock()
		stale := entry.lastSeen.Before(cutoff)
		entry.mu.Unlock()

		if stale {
			l.clients.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Size 当前跟踪的客户端数
func (l *ClientLimiter) Size() int {
	n := 0
	l.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
