package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a toast stays visible.
const DefaultTTL = 4 * time.Second

// Toast is a notice with its dismissal deadline.
type Toast struct {
	Notice
	ID        uint64
	ExpiresAt time.Time
}

// Toaster keeps recent notices until they expire and fans each one out to
// subscribers. Slow subscribers miss notices rather than block Notify.
type Toaster struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	nextID uint64
	toasts []Toast
	subs   map[chan Toast]struct{}
}

func NewToaster(ttl time.Duration) *Toaster {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Toaster{ttl: ttl, now: time.Now, subs: make(map[chan Toast]struct{})}
}

func (t *Toaster) Notify(n Notice) {
	now := t.now()
	if n.At.IsZero() {
		n.At = now
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	toast := Toast{Notice: n, ID: t.nextID, ExpiresAt: now.Add(t.ttl)}
	t.toasts = append(t.pruneLocked(now), toast)
	for ch := range t.subs {
		select {
		case ch <- toast:
		default:
		}
	}
}

// Active returns the toasts that have not yet expired, oldest first.
func (t *Toaster) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts = t.pruneLocked(t.now())
	return append([]Toast(nil), t.toasts...)
}

// Dismiss removes a toast before it expires.
func (t *Toaster) Dismiss(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.toasts {
		if t.toasts[i].ID == id {
			t.toasts = append(t.toasts[:i], t.toasts[i+1:]...)
			return
		}
	}
}

func (t *Toaster) Subscribe() chan Toast {
	ch := make(chan Toast, 16)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Toaster) Unsubscribe(ch chan Toast) {
	t.mu.Lock()
	if _, ok := t.subs[ch]; ok {
		delete(t.subs, ch)
		close(ch)
	}
	t.mu.Unlock()
}

func (t *Toaster) pruneLocked(now time.Time) []Toast {
	live := t.toasts[:0]
	for _, toast := range t.toasts {
		if now.Before(toast.ExpiresAt) {
			live = append(live, toast)
		}
	}
	return live
}
