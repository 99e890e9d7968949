package track

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/nutrilog/internal/model"
)

// DefaultInterval is the global poll cadence. The list view only needs
// coarse freshness; drafts open in a detail view are polled by their own
// ItemPoller instead.
const DefaultInterval = 750 * time.Millisecond

// Scheduler is a timer-driven loop over every pending draft in the store.
//
// STATE MACHINE:
// The scheduler is Idle (no timer) or Active (ticker running). The state
// is derived, re-evaluated on every store change: pending count > 0 means
// Active, zero means Idle. Both transitions are level-triggered — asking
// an Active scheduler to be Active is a no-op, same for Idle — so the
// evaluation can run as often as the store changes without harm.
//
// On each tick it snapshots the pending drafts and issues one status
// check per draft concurrently. A draft claimed by an ItemPoller is
// skipped, so only one poller ever writes a given draft.
type Scheduler struct {
	store    *Store
	checker  StatusChecker
	recon    Reconciler
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	claimed map[string]struct{}
	active  bool

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewScheduler(store *Store, checker StatusChecker, recon Reconciler, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:    store,
		checker:  checker,
		recon:    recon,
		interval: interval,
		logger:   logger,
		claimed:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the control loop. Safe to call more than once.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.loop()
	})
}

// Stop tears the scheduler down: the timer is released and in-flight
// checks are waited for. Safe to call more than once, and safe to call
// without Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

// Active reports whether the poll timer currently exists.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Claim marks a draft as owned by an ItemPoller; the global loop will
// skip it until Release. Claiming twice is a no-op.
func (s *Scheduler) Claim(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimed[id] = struct{}{}
}

// Release returns a draft to the global loop.
func (s *Scheduler) Release(id string) {
	s.mu.Lock()
	delete(s.claimed, id)
	s.mu.Unlock()
	// The draft may still be pending; wake the loop so it re-arms.
	s.store.notify()
}

func (s *Scheduler) isClaimed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claimed[id]
	return ok
}

func (s *Scheduler) setActive(v bool) {
	s.mu.Lock()
	s.active = v
	s.mu.Unlock()
}

// loop owns the ticker. The ticker exists only while there is work: it is
// created on the Idle→Active edge and stopped on Active→Idle, and the
// deferred stop covers teardown on every exit path.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	changes := s.store.Subscribe()

	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		s.setActive(false)
	}()

	for {
		shouldRun := len(s.pollable()) > 0
		switch {
		case shouldRun && ticker == nil:
			ticker = time.NewTicker(s.interval)
			tick = ticker.C
			s.setActive(true)
		case !shouldRun && ticker != nil:
			ticker.Stop()
			ticker = nil
			tick = nil
			s.setActive(false)
		}

		select {
		case <-s.done:
			return
		case <-changes:
			// Store changed; re-derive Idle/Active at the top of the loop.
		case <-tick:
			s.tickOnce()
		}
	}
}

// pollable returns the pending drafts not claimed by an ItemPoller.
func (s *Scheduler) pollable() []string {
	var ids []string
	for _, d := range s.store.Pending() {
		if !s.isClaimed(d.ID) {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// tickOnce issues one status check per pollable draft, each on its own
// goroutine. Failures are isolated per draft: one check erroring (or
// hanging until its transport timeout) cannot abort the others.
func (s *Scheduler) tickOnce() {
	for _, id := range s.pollable() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.checkOne(id)
		}()
	}
}

// checkOne fetches one draft's server state and merges it into the store.
// A transport failure is "no new information": the draft stays pending
// and the next tick retries.
func (s *Scheduler) checkOne(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval*4)
	defer cancel()

	draft, err := s.checker.CheckDraftStatus(ctx, id)
	if err != nil {
		s.logger.Debug("status check failed, will retry",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	applyServerDraft(s.store, s.recon, draft)
}

// applyServerDraft merges a polled server payload into the store and
// fires the settle signal when this call is the one that settled it.
//
// IDEMPOTENCE AND EXACTLY-ONCE:
// Update returns the previous value under the store's lock, so of any
// number of goroutines applying the same terminal payload, exactly one
// observes "was pending" and fires the reconciler. The rest see a draft
// that is already terminal and fire nothing. Applying the same terminal
// patch twice also leaves the store in the same observable state as
// applying it once.
func applyServerDraft(store *Store, recon Reconciler, draft *model.Draft) {
	if draft.Status.IsPending() {
		// Still in progress: no new information, no store mutation.
		return
	}

	patch := Patch{Status: &draft.Status}
	if draft.Result != nil {
		patch.Result = draft.Result
	}
	if draft.ErrorMessage != "" {
		msg := draft.ErrorMessage
		patch.ErrorMessage = &msg
	}

	prev, ok := store.Update(draft.ID, patch)
	if !ok {
		// Discarded while the check was in flight.
		return
	}
	if prev.Status.IsPending() {
		recon.DraftSettled(*draft)
	}
}
