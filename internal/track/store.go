// Package track is the client-side half of the draft lifecycle: an
// in-memory draft store, the pollers that watch pending drafts until the
// server settles them, and the cache reconciliation that follows.
//
// WHY A CLIENT-SIDE STORE AT ALL?
// Draft creation is optimistic: the instant a user submits a description,
// the store gains a pending entry and the UI can show it, before (and
// independent of) any server round-trip completing. The server stays
// authoritative — whatever an authoritative fetch returns supersedes the
// local entry — but between fetches the store is what every view reads.
package track

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/sakif/nutrilog/internal/model"
)

// Patch is a typed partial update for one draft. Nil fields are left
// untouched, so a status-only poll result can't clobber a payload.
type Patch struct {
	Status       *model.Status
	Result       *model.Result
	ErrorMessage *string
}

// Store holds the local draft collection, keyed by draft id.
//
// Unlike the server's repository this is purely in-memory and scoped to
// one session: initialized empty, never persisted. It is safe for
// concurrent use — the global scheduler, a per-item poller, and the UI
// all touch it from different goroutines.
type Store struct {
	mu     sync.RWMutex
	drafts map[string]model.Draft
	subs   []chan struct{}
	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		drafts: make(map[string]model.Draft),
		logger: logger,
	}
}

// Add inserts a new draft. Adding an id that already exists indicates a
// logic error upstream (ids are server-issued and never reused); the
// existing entry is kept and the duplicate is logged and dropped.
func (s *Store) Add(draft model.Draft) {
	s.mu.Lock()
	if _, exists := s.drafts[draft.ID]; exists {
		s.mu.Unlock()
		s.logger.Error("duplicate draft add ignored", slog.String("id", draft.ID))
		return
	}
	s.drafts[draft.ID] = draft
	s.mu.Unlock()
	s.notify()
}

// Apply upserts a draft from an authoritative server payload. Local
// entries are provisional, so whatever the server returned wins outright.
func (s *Store) Apply(draft model.Draft) {
	s.mu.Lock()
	s.drafts[draft.ID] = draft
	s.mu.Unlock()
	s.notify()
}

// Update merges a patch into an existing draft. It is a no-op if the id
// is absent (the draft may have been discarded while a check was in
// flight) — it never creates an entry.
//
// The previous value is returned so callers can detect the transition
// they caused: the reconcile signal must fire exactly once per settle,
// and "prev was pending, now terminal" is that edge. Applying the same
// terminal patch twice finds prev already terminal the second time.
func (s *Store) Update(id string, patch Patch) (prev model.Draft, ok bool) {
	s.mu.Lock()
	draft, exists := s.drafts[id]
	if !exists {
		s.mu.Unlock()
		return model.Draft{}, false
	}
	prev = draft

	if patch.Status != nil {
		draft.Status = *patch.Status
	}
	if patch.Result != nil {
		draft.Result = patch.Result
	}
	if patch.ErrorMessage != nil {
		draft.ErrorMessage = *patch.ErrorMessage
	}

	s.drafts[id] = draft
	s.mu.Unlock()
	s.notify()
	return prev, true
}

// Remove deletes the entry. No-op if absent.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	if _, exists := s.drafts[id]; !exists {
		s.mu.Unlock()
		return
	}
	delete(s.drafts, id)
	s.mu.Unlock()
	s.notify()
}

// Get returns one draft by id.
func (s *Store) Get(id string) (model.Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[id]
	return draft, ok
}

// List returns all drafts, newest first.
func (s *Store) List() []model.Draft {
	s.mu.RLock()
	out := make([]model.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, d)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pending returns the drafts still awaiting the server, including those
// in pending_edit (an edit polls exactly like initial generation).
func (s *Store) Pending() []model.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Draft
	for _, d := range s.drafts {
		if d.Status.IsPending() {
			out = append(out, d)
		}
	}
	return out
}

// PendingCount is the derived count the scheduler's Idle/Active state
// machine keys on.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.drafts {
		if d.Status.IsPending() {
			n++
		}
	}
	return n
}

// Subscribe returns a channel that receives a (coalesced) signal after
// every mutation. The channel has a buffer of one and sends never block,
// so a slow consumer sees at least one signal for any burst of changes.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// Already has a pending signal; coalesce.
		}
	}
}
