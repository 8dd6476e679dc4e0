package dedup

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Deduper remembers ids it has already let through.
// With ttl <= 0 entries never expire and live until Forget or Reset.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
	now  func() time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time), now: time.Now}
}

// ShouldProcess reports whether id is new and marks it in the same critical section.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && (exp.IsZero() || now.Before(exp)) {
		return false
	}
	var exp time.Time
	if d.ttl > 0 {
		exp = now.Add(d.ttl)
	}
	d.seen[id] = exp
	if len(d.seen) > d.max {
		d.evictExpired(now)
	}
	return true
}

func (d *Deduper) evictExpired(now time.Time) {
	for k, v := range d.seen {
		if !v.IsZero() && now.After(v) {
			delete(d.seen, k)
		}
		if len(d.seen) <= d.max {
			break
		}
	}
}

func (d *Deduper) Seen(id string) bool {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[id]
	return ok && (exp.IsZero() || now.Before(exp))
}

func (d *Deduper) Forget(id string) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

// ForgetPrefix drops every id starting with prefix and returns how many were removed.
func (d *Deduper) ForgetPrefix(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for k := range d.seen {
		if strings.HasPrefix(k, prefix) {
			delete(d.seen, k)
			n++
		}
	}
	return n
}

func (d *Deduper) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]time.Time)
	d.mu.Unlock()
}

// Keys lists live ids in sorted order.
func (d *Deduper) Keys() []string {
	now := d.now()
	d.mu.Lock()
	out := make([]string, 0, len(d.seen))
	for k, exp := range d.seen {
		if exp.IsZero() || now.Before(exp) {
			out = append(out, k)
		}
	}
	d.mu.Unlock()
	sort.Strings(out)
	return out
}
