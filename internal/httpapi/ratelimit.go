package httpapi

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const rateLimiterMaxKeys = 10000

// rateLimiter keeps one token bucket per key (client IP, login email). Keys
// are kept in least-recently-used order and the map never holds more than
// maxKeys of them.
type rateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	maxKeys int
	order   *list.List // front is most recently seen
	entries map[string]*list.Element
}

type limiterEntry struct {
	key      string
	lim      *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows perMinute events per key per minute, with bursts of
// up to burst events.
func newRateLimiter(perMinute, burst int) *rateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &rateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		maxKeys: rateLimiterMaxKeys,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Allow consumes one token for key. When the bucket is empty it reports how
// long until the next token.
func (l *rateLimiter) Allow(key string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	l.mu.Lock()
	var e *limiterEntry
	if el, ok := l.entries[key]; ok {
		e = el.Value.(*limiterEntry)
		l.order.MoveToFront(el)
	} else {
		l.evictLocked(now)
		e = &limiterEntry{key: key, lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = l.order.PushFront(e)
	}
	e.lastSeen = now
	l.mu.Unlock()

	res := e.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// evictLocked drops idle keys from the cold end, then the least recently seen
// key if there is still no room for one more.
func (l *rateLimiter) evictLocked(now time.Time) {
	for back := l.order.Back(); back != nil; back = l.order.Back() {
		e := back.Value.(*limiterEntry)
		if len(l.entries) < l.maxKeys && now.Sub(e.lastSeen) <= l.idle {
			return
		}
		l.order.Remove(back)
		delete(l.entries, e.key)
	}
}

func (l *rateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
