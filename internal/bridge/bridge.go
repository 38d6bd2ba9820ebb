// Package bridge carries selection state from the map widget to the host
// application. Pushes are fire-and-forget: the widget never waits on, or
// rolls back because of, a host that is slow to receive.
package bridge

import (
	"sync"

	"github.com/joeblew999/plat-parcels/internal/selection"
)

// Update is one host-visible state change.
type Update struct {
	Seq        uint64         `json:"seq"`
	Mode       selection.Mode `json:"mode"`
	Individual []Feature      `json:"individual,omitempty"`
	Comparison *Comparison    `json:"comparison,omitempty"`
}

// Value returns what the host stores under selected_features: the
// individual array in individual mode, the comparison otherwise.
func (u Update) Value() any {
	if u.Mode == selection.Group {
		if u.Comparison == nil {
			return nil
		}
		return u.Comparison
	}
	if u.Individual == nil {
		return []Feature{}
	}
	return u.Individual
}

// Bridge implements selection.Syncer. It keeps the latest update and fans
// it out to subscribers without blocking.
type Bridge struct {
	mu     sync.RWMutex
	mode   selection.Mode
	latest Update
	seq    uint64
	subs   map[chan Update]struct{}
	onDrop func()
	closed bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDropHook registers fn to be called whenever a subscriber misses an
// update because its buffer was full.
func WithDropHook(fn func()) Option {
	return func(b *Bridge) { b.onDrop = fn }
}

// New returns a bridge in individual mode.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		mode: selection.Individual,
		subs: make(map[chan Update]struct{}),
	}
	b.latest = Update{Mode: selection.Individual, Individual: []Feature{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetMode records the widget mode and resets host state for it.
func (b *Bridge) SetMode(mode selection.Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode == mode {
		return
	}
	b.mode = mode
	u := Update{Mode: mode}
	if mode == selection.Individual {
		u.Individual = []Feature{}
	}
	b.publishLocked(u)
}

// SyncIndividual pushes the individual set. It is a no-op in group mode.
func (b *Bridge) SyncIndividual(entries []selection.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode != selection.Individual {
		return
	}
	b.publishLocked(Update{Mode: selection.Individual, Individual: FeaturesFrom(entries)})
}

// SyncGroups pushes both confirmed groups tagged comparison_mode=group.
func (b *Bridge) SyncGroups(group1, group2 *selection.ConfirmedGroup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(Update{
		Mode: selection.Group,
		Comparison: &Comparison{
			ComparisonMode: string(selection.Group),
			Group1:         GroupFrom(group1),
			Group2:         GroupFrom(group2),
		},
	})
}

func (b *Bridge) publishLocked(u Update) {
	b.seq++
	u.Seq = b.seq
	b.latest = u
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// Latest returns the most recent update.
func (b *Bridge) Latest() Update {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// Subscribe returns a buffered channel of future updates.
func (b *Bridge) Subscribe() chan Update {
	ch := make(chan Update, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bridge) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Close unsubscribes everyone. Later subscribers get a closed channel.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

var _ selection.Syncer = (*Bridge)(nil)
