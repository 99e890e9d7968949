package track

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/model"
)

// DefaultItemInterval is the detail-view poll cadence. Slower than the
// global loop because a detail view watches exactly one draft and a
// generation takes several seconds anyway.
const DefaultItemInterval = 3 * time.Second

// Claimer is how an ItemPoller takes exclusive polling ownership of its
// draft. Implemented by Scheduler; nil means no global loop is running.
type Claimer interface {
	Claim(id string)
	Release(id string)
}

// ItemPoller watches one draft for the lifetime of a detail view.
//
// PRECEDENCE:
// While an ItemPoller exists for a draft, it is the only writer for that
// draft: it claims the id from the global scheduler on Start and releases
// it on Stop. Two pollers writing the same entity with no defined order
// would make the last write win arbitrarily, so ownership is explicit.
//
// STICKINESS:
// Once the draft reaches complete or error the poll loop stops for good.
// It does not restart on its own; the only way the draft becomes pending
// again is an explicit edit through AddComponent/RemoveComponent, and
// those resume polling themselves.
type ItemPoller struct {
	id       string
	store    *Store
	api      DraftAPI
	recon    Reconciler
	claimer  Claimer
	interval time.Duration
	logger   *slog.Logger

	// busy serializes the four mutations and suspends polling while one
	// is in flight, so a stale refetch cannot race a mutation's result.
	busy sync.Mutex

	mu      sync.Mutex
	polling bool

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewItemPoller(id string, store *Store, api DraftAPI, recon Reconciler, claimer Claimer, interval time.Duration, logger *slog.Logger) *ItemPoller {
	if interval <= 0 {
		interval = DefaultItemInterval
	}
	return &ItemPoller{
		id:       id,
		store:    store,
		api:      api,
		recon:    recon,
		claimer:  claimer,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start claims the draft and begins polling if it is pending. A draft
// that is already terminal never causes a status check.
func (p *ItemPoller) Start() {
	if p.claimer != nil {
		p.claimer.Claim(p.id)
	}
	p.resumeIfPending()
}

// Stop ends polling and returns the draft to the global scheduler. The
// poller cannot be restarted; views create a fresh one.
func (p *ItemPoller) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
	if p.claimer != nil {
		p.claimer.Release(p.id)
	}
}

// resumeIfPending starts the poll loop when the draft is in a pending
// state and no loop is already running.
func (p *ItemPoller) resumeIfPending() {
	draft, ok := p.store.Get(p.id)
	if !ok || !draft.Status.IsPending() {
		return
	}

	p.mu.Lock()
	if p.polling {
		p.mu.Unlock()
		return
	}
	p.polling = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop()
}

func (p *ItemPoller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if terminal := p.poll(); terminal {
				return
			}
		}
	}
}

// poll runs one status check. It reports true when the draft is gone or
// terminal, which ends the loop (sticky terminal state).
//
// The polling flag is cleared here, under the busy lock, not in loop's
// teardown: an edit blocked on busy must observe polling == false by the
// time it runs, or its resumeIfPending would decline to restart the loop
// and the draft would go unwatched.
func (p *ItemPoller) poll() bool {
	// A mutation in flight owns the draft right now; skip this round
	// rather than racing its result.
	if !p.busy.TryLock() {
		return false
	}
	defer p.busy.Unlock()

	draft, ok := p.store.Get(p.id)
	if !ok {
		p.endPolling()
		return true
	}
	if !draft.Status.IsPending() {
		p.endPolling()
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.interval*2)
	defer cancel()

	server, err := p.api.CheckDraftStatus(ctx, p.id)
	if err != nil {
		// No new information; retry on the next tick.
		p.logger.Debug("status check failed, will retry",
			slog.String("id", p.id),
			slog.String("error", err.Error()),
		)
		return false
	}

	applyServerDraft(p.store, p.recon, server)
	if server.Status.IsPending() {
		return false
	}
	p.endPolling()
	return true
}

func (p *ItemPoller) endPolling() {
	p.mu.Lock()
	p.polling = false
	p.mu.Unlock()
}

// Save promotes the draft to a permanent meal. The draft must be
// complete; the server enforces this too, but checking locally gives the
// caller an immediate answer without a round-trip.
func (p *ItemPoller) Save(ctx context.Context) (*model.Meal, error) {
	p.busy.Lock()
	defer p.busy.Unlock()

	draft, ok := p.store.Get(p.id)
	if !ok {
		return nil, apperror.NotFound("draft", p.id)
	}
	if draft.Status != model.StatusComplete {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("draft is %s; only complete drafts can be saved", draft.Status))
	}

	meal, err := p.api.SaveDraftAsMeal(ctx, p.id)
	if err != nil {
		// Not applied optimistically, so there is nothing to roll back.
		return nil, err
	}

	p.store.Remove(p.id)
	p.recon.MealSaved(*meal)
	return meal, nil
}

// Discard deletes the draft server-side and locally. Valid in any
// status; it is the only action available on an errored draft.
func (p *ItemPoller) Discard(ctx context.Context) error {
	p.busy.Lock()
	defer p.busy.Unlock()

	if _, ok := p.store.Get(p.id); !ok {
		return apperror.NotFound("draft", p.id)
	}

	if err := p.api.DiscardDraft(ctx, p.id); err != nil {
		return err
	}

	p.store.Remove(p.id)
	p.recon.DraftDiscarded(p.id)
	return nil
}

// AddComponent sends one more food item for analysis. The server moves
// the draft to pending_edit; polling resumes until it settles back to
// complete.
func (p *ItemPoller) AddComponent(ctx context.Context, description string) error {
	if err := p.mutate(ctx, func(ctx context.Context) (*model.Draft, error) {
		return p.api.AddComponentToDraft(ctx, p.id, description)
	}); err != nil {
		return err
	}
	p.resumeIfPending()
	return nil
}

// RemoveComponent deletes one component from the draft. Same lifecycle
// as AddComponent.
func (p *ItemPoller) RemoveComponent(ctx context.Context, componentID string) error {
	if err := p.mutate(ctx, func(ctx context.Context) (*model.Draft, error) {
		return p.api.RemoveComponentFromDraft(ctx, p.id, componentID)
	}); err != nil {
		return err
	}
	p.resumeIfPending()
	return nil
}

// mutate runs one draft edit under the busy lock and applies the server's
// returned draft (typically status pending_edit) to the store.
func (p *ItemPoller) mutate(ctx context.Context, call func(context.Context) (*model.Draft, error)) error {
	p.busy.Lock()
	defer p.busy.Unlock()

	draft, ok := p.store.Get(p.id)
	if !ok {
		return apperror.NotFound("draft", p.id)
	}
	if draft.Status != model.StatusComplete {
		return apperror.ValidationFailed("status",
			fmt.Sprintf("draft is %s; only complete drafts can be edited", draft.Status))
	}

	server, err := call(ctx)
	if err != nil {
		// The store is untouched; the caller surfaces the error.
		return err
	}

	p.store.Apply(*server)
	return nil
}
