package track

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/nutrilog/internal/model"
)

// Cache keys for the server-derived aggregates the CLI keeps warm.
// Date-scoped keys embed the date so that settling yesterday's draft
// doesn't needlessly refetch today's summary.
const (
	KeyDrafts = "drafts"
	KeyMeals  = "meals"
	KeyStreak = "account:streak"
)

// KeyDailySummary returns the cache key for one day's summary.
func KeyDailySummary(date string) string { return "summary:daily:" + date }

// KeyWeeklySummary returns the cache key for the week starting on the
// given Monday.
func KeyWeeklySummary(monday string) string { return "summary:weekly:" + monday }

// CacheSet is a Reconciler backed by named refresh functions.
//
// Each registered key owns one refresh func (typically a client fetch
// that rewrites a local view). Invalidate marks keys stale and refreshes
// them on a background goroutine, one at a time per key:
//   - invalidating an unregistered key is harmless (no one is watching it)
//   - invalidating a key already being refreshed coalesces into a single
//     rerun, so a burst of settles doesn't stampede the server
type CacheSet struct {
	mu      sync.Mutex
	refresh map[string]func()
	state   map[string]*cacheEntry
	logger  *slog.Logger

	// now is swappable so tests can pin which date counts as "today".
	now func() time.Time
}

type cacheEntry struct {
	running bool
	dirty   bool
}

func NewCacheSet(logger *slog.Logger) *CacheSet {
	return &CacheSet{
		refresh: make(map[string]func()),
		state:   make(map[string]*cacheEntry),
		logger:  logger,
		now:     time.Now,
	}
}

// Register binds a refresh function to a cache key. Registering a key
// twice replaces the function.
func (c *CacheSet) Register(key string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh[key] = fn
}

// Invalidate marks the given keys stale and refreshes them in the
// background. It never blocks the caller.
func (c *CacheSet) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		fn, ok := c.refresh[key]
		if !ok {
			continue
		}
		entry := c.state[key]
		if entry == nil {
			entry = &cacheEntry{}
			c.state[key] = entry
		}
		if entry.running {
			// A refresh is in flight; make sure one more happens after it.
			entry.dirty = true
			continue
		}
		entry.running = true
		go c.run(key, fn)
	}
}

// run executes the refresh, then reruns it if more invalidations arrived
// while it was in flight.
func (c *CacheSet) run(key string, fn func()) {
	for {
		fn()

		c.mu.Lock()
		entry := c.state[key]
		if !entry.dirty {
			entry.running = false
			c.mu.Unlock()
			return
		}
		entry.dirty = false
		c.mu.Unlock()
	}
}

// DraftSettled invalidates everything a settled draft can affect: the
// draft list always, and the date-scoped aggregates when the draft's date
// is current (today's summary, this week's summary, the streak).
func (c *CacheSet) DraftSettled(draft model.Draft) {
	c.Invalidate(c.affectedKeys(time.Unix(draft.CreatedAt, 0))...)
}

// MealSaved invalidates the meal list plus the saved date's aggregates.
func (c *CacheSet) MealSaved(meal model.Meal) {
	keys := []string{KeyMeals, KeyDrafts, KeyStreak}
	if day, err := time.Parse("2006-01-02", meal.ConsumedOn); err == nil {
		keys = append(keys, c.dateKeys(day)...)
	}
	c.Invalidate(keys...)
}

// DraftDiscarded only affects the draft list.
func (c *CacheSet) DraftDiscarded(string) {
	c.Invalidate(KeyDrafts)
}

func (c *CacheSet) affectedKeys(day time.Time) []string {
	return append([]string{KeyDrafts, KeyStreak}, c.dateKeys(day)...)
}

// dateKeys returns the daily and weekly summary keys touched by an event
// on the given day, but only when that day is visible now: today's
// summary, and the weekly summary when the day falls in the current
// Monday-to-Sunday week.
func (c *CacheSet) dateKeys(day time.Time) []string {
	now := c.now()
	var keys []string
	if sameDate(day, now) {
		keys = append(keys, KeyDailySummary(day.Format("2006-01-02")))
	}
	monday := startOfWeek(now)
	if !day.Before(monday) && day.Before(monday.AddDate(0, 0, 7)) {
		keys = append(keys, KeyWeeklySummary(monday.Format("2006-01-02")))
	}
	return keys
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// startOfWeek returns midnight on the Monday of the week containing t.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}

var _ Reconciler = (*CacheSet)(nil)
