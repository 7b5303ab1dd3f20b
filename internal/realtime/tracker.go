package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/basket/internal/cache"
)

const (
	DefaultActionTTL = 5 * time.Second
	DefaultCreateTTL = 3 * time.Second
)

const createFlag = "ignore-next-create"

// ItemKey builds the tracker key for an item event, e.g. "updated-42".
func ItemKey(event EventType, id int64) string {
	return fmt.Sprintf("%s-%d", event, id)
}

// ListKey builds the tracker key for a list event, e.g. "list-updated-5".
func ListKey(event EventType, id int64) string {
	return fmt.Sprintf("list-%s-%d", event, id)
}

// TrackerOptions configures a [Tracker]. Zero values use the defaults.
type TrackerOptions struct {
	ActionTTL time.Duration
	CreateTTL time.Duration
	Now       func() time.Time
}

// Tracker is a short-lived memory of writes this client just issued.
//
// Keyed entries cover updates and deletes, where the entity id is known before the call.
// Creates arm a one-shot flag instead because the id is only known once the response arrives.
// Both map to the time they were recorded so callers can measure echo latency.
type Tracker struct {
	actionTTL time.Duration
	createTTL time.Duration
	now       func() time.Time
	keys      *cache.Map[string, time.Time]
	flag      *cache.Map[string, time.Time]
}

func NewTracker(opts TrackerOptions) *Tracker {
	if opts.ActionTTL <= 0 {
		opts.ActionTTL = DefaultActionTTL
	}
	if opts.CreateTTL <= 0 {
		opts.CreateTTL = DefaultCreateTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	copts := cache.Options{Now: opts.Now}
	return &Tracker{
		actionTTL: opts.ActionTTL,
		createTTL: opts.CreateTTL,
		now:       opts.Now,
		keys:      cache.New[string, time.Time](copts),
		flag:      cache.New[string, time.Time](copts),
	}
}

// Track records key for the action TTL. Tracking an existing key restarts its window.
func (t *Tracker) Track(key string) {
	t.keys.Set(key, t.now(), t.actionTTL)
}

// IsLocal reports whether key was tracked within the window. It does not consume the entry.
func (t *Tracker) IsLocal(key string) bool {
	return t.keys.Has(key)
}

// Consume reports whether key was tracked within the window and removes it on a match.
func (t *Tracker) Consume(key string) bool {
	_, ok := t.match(key, true)
	return ok
}

// match looks key up and returns how long ago it was tracked.
func (t *Tracker) match(key string, consume bool) (time.Duration, bool) {
	var (
		at time.Time
		ok bool
	)
	if consume {
		at, ok = t.keys.Take(key)
	} else {
		at, ok = t.keys.Get(key)
	}
	if !ok {
		return 0, false
	}
	return t.now().Sub(at), true
}

// IgnoreNextCreate arms the create flag for the create TTL.
func (t *Tracker) IgnoreNextCreate() {
	t.flag.Set(createFlag, t.now(), t.createTTL)
}

// ShouldIgnoreCreate reads and clears the create flag. It returns true at most once per arm.
func (t *Tracker) ShouldIgnoreCreate() bool {
	_, ok := t.takeCreate()
	return ok
}

func (t *Tracker) takeCreate() (time.Duration, bool) {
	at, ok := t.flag.Take(createFlag)
	if !ok {
		return 0, false
	}
	return t.now().Sub(at), true
}

// Len counts live tracked keys, not including the create flag.
func (t *Tracker) Len() int {
	return t.keys.Len()
}

// Reset forgets every tracked write, e.g. when switching lists.
func (t *Tracker) Reset() {
	t.keys.Clear()
	t.flag.Clear()
}

// Sweep drops expired entries and returns how many were removed.
func (t *Tracker) Sweep() int {
	return t.keys.PurgeExpired() + t.flag.PurgeExpired()
}

// Run sweeps on interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	go t.flag.Janitor(ctx, interval)
	t.keys.Janitor(ctx, interval)
}
