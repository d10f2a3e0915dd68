package wallpaper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/util"
	"github.com/dixieflatline76/Easel/util/log"
)

// Trigger identifies what asked for an update.
type Trigger int

const (
	TriggerScheduled Trigger = iota
	TriggerManual
	TriggerPrevious
)

func (t Trigger) String() string {
	switch t {
	case TriggerScheduled:
		return "scheduled"
	case TriggerManual:
		return "manual"
	case TriggerPrevious:
		return "previous"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// UpdateOutcome reports what an update request did.
type UpdateOutcome int

const (
	// OutcomeUpdated means a wallpaper was applied.
	OutcomeUpdated UpdateOutcome = iota
	// OutcomeBusy means another update held the guard; the request was dropped.
	OutcomeBusy
	// OutcomeDeferred means a scheduled update found no network and will be retried
	// by the next reconciliation.
	OutcomeDeferred
	// OutcomeNotDue means the scheduled slot has not been reached or was already served.
	OutcomeNotDue
	// OutcomeUnchanged means there was nothing to go back to.
	OutcomeUnchanged
	// OutcomeFailed means the update ran and returned an error. State is untouched.
	OutcomeFailed
)

func (o UpdateOutcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeBusy:
		return "busy"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeNotDue:
		return "not_due"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ArtworkFetcher is the scheduler's view of the ArtworkProvider.
type ArtworkFetcher interface {
	Fetch(ctx context.Context) (provider.Artwork, error)
	CleanupCacheFiles(exceptKey string)
}

// ArtworkLibrary is the scheduler's view of the ArtworkStore.
type ArtworkLibrary interface {
	Save(sourcePath string, meta provider.Metadata) (string, error)
	Lookup(key string) (provider.Artwork, bool)
}

// ShownHistory is the scheduler's view of the HistoryLedger.
type ShownHistory interface {
	RecordShown(meta provider.Metadata) error
	MostRecent(n int) []provider.Metadata
}

// SchedulerDeps bundles the collaborators of a Scheduler.
type SchedulerDeps struct {
	Settings func() config.Settings
	Fetcher  ArtworkFetcher
	Library  ArtworkLibrary
	History  ShownHistory
	Setter   provider.WallpaperSetter
	Probe    Probe
	State    *StateFile
	Metrics  *Metrics
	Now      func() time.Time
}

// Scheduler decides when the wallpaper changes and runs the update pipeline. At
// most one update runs at a time; concurrent requests are dropped, not queued.
type Scheduler struct {
	deps SchedulerDeps
	now  func() time.Time

	updating *util.SafeFlag
	current  *util.Observable[*provider.Artwork]
	nextRun  atomic.Int64 // unix millis, 0 when not armed

	stateMu sync.Mutex
	state   SchedulerState

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler with the persisted state loaded.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		deps:     deps,
		now:      now,
		updating: util.NewSafeFlag(),
		current:  util.NewObservable[*provider.Artwork](nil),
		state:    deps.State.Load(),
	}
}

// NextUpdateTime returns the next occurrence of hour:minute in now's location:
// today when now has not passed it yet, tomorrow otherwise.
func NextUpdateTime(now time.Time, hour, minute int) time.Time {
	slot := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(slot) {
		slot = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return slot
}

// ScheduledUpdateDue reports whether a scheduled update should run at now: today's
// slot has been reached and the last scheduled update happened at least
// intervalDays calendar days ago (or never).
func ScheduledUpdateDue(now, lastScheduled time.Time, hour, minute, intervalDays int) bool {
	slot := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(slot) {
		return false
	}
	if lastScheduled.IsZero() {
		return true
	}
	return calendarDaysBetween(lastScheduled.In(now.Location()), now) >= max(intervalDays, 1)
}

// calendarDaysBetween counts date boundaries from a to b, ignoring time of day.
func calendarDaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Start loads persisted state, restores the current artwork from the store and
// starts the timer loop. The loop performs an immediate catch-up when today's slot
// was missed. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel != nil {
		return
	}

	st := s.deps.State.Load()
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()

	if st.LastAttemptedMetadata != nil {
		if art, ok := s.deps.Library.Lookup(st.LastAttemptedMetadata.Key()); ok {
			s.current.Store(&art)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	log.Print("Scheduler: started")
}

// Stop cancels the timer and waits for an in-flight scheduled update to return.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.nextRun.Store(0)
	log.Print("Scheduler: stopped")
}

// IsRunning reports whether the timer loop is active.
func (s *Scheduler) IsRunning() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	outcome, err := s.CheckAndCatchUp(ctx)
	logOutcome(TriggerScheduled, outcome, err)
	for {
		h, m := s.deps.Settings().UpdateTime()
		next := NextUpdateTime(s.now(), h, m)
		s.nextRun.Store(next.UnixMilli())
		log.Printf("Scheduler: next update at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			outcome, err := s.CheckAndCatchUp(ctx)
			logOutcome(TriggerScheduled, outcome, err)
		}
	}
}

// CheckAndCatchUp runs a scheduled update when one is due. Without network the
// update is deferred to the next reconciliation.
func (s *Scheduler) CheckAndCatchUp(ctx context.Context) (UpdateOutcome, error) {
	if !s.updating.TryAcquire() {
		return s.record(TriggerScheduled, OutcomeBusy, nil)
	}
	defer s.updating.Release()

	settings := s.deps.Settings()
	h, m := settings.UpdateTime()
	if !ScheduledUpdateDue(s.now(), s.State().LastScheduled(), h, m, settings.IntervalDays()) {
		return OutcomeNotDue, nil
	}
	if !s.deps.Probe.Available(ctx) {
		log.Print("Scheduler: network unavailable, deferring scheduled update")
		return s.record(TriggerScheduled, OutcomeDeferred, nil)
	}
	return s.update(ctx, TriggerScheduled)
}

// SetNextWallpaperManually fetches and applies a new artwork right away. Offline it
// falls back to the fetch cache.
func (s *Scheduler) SetNextWallpaperManually(ctx context.Context) (UpdateOutcome, error) {
	if !s.updating.TryAcquire() {
		log.Print("Scheduler: update already in progress, ignoring manual request")
		return s.record(TriggerManual, OutcomeBusy, nil)
	}
	defer s.updating.Release()
	return s.update(ctx, TriggerManual)
}

// PreviousWallpaper re-applies the artwork shown before the current one when it is
// still in the store. It does not touch the update timestamps or the history.
func (s *Scheduler) PreviousWallpaper(ctx context.Context) (UpdateOutcome, error) {
	if !s.updating.TryAcquire() {
		return s.record(TriggerPrevious, OutcomeBusy, nil)
	}
	defer s.updating.Release()

	recent := s.deps.History.MostRecent(2)
	if len(recent) < 2 {
		log.Print("Scheduler: no previous artwork in history")
		return s.record(TriggerPrevious, OutcomeUnchanged, nil)
	}
	art, ok := s.deps.Library.Lookup(recent[1].Key())
	if !ok {
		log.Printf("Scheduler: previous artwork %s is no longer stored", recent[1].Key())
		return s.record(TriggerPrevious, OutcomeUnchanged, nil)
	}
	if err := ctx.Err(); err != nil {
		return s.record(TriggerPrevious, OutcomeFailed, err)
	}
	if err := s.deps.Setter.SetWallpaper(art.Path); err != nil {
		return s.record(TriggerPrevious, OutcomeFailed, fmt.Errorf("set wallpaper: %w", err))
	}
	s.current.Store(&art)

	st := s.mutateState(func(st *SchedulerState) {
		meta := art.Metadata
		st.LastAttemptedMetadata = &meta
	})
	if err := s.deps.State.Save(st); err != nil {
		log.Printf("Scheduler: %v", err)
	}
	log.Printf("Scheduler: restored %q", art.Metadata.DisplayTitle())
	return s.record(TriggerPrevious, OutcomeUpdated, nil)
}

// update runs the pipeline. The caller holds the guard. Cancellation is honored up
// to the end of the fetch; once persistence starts it runs to completion.
func (s *Scheduler) update(ctx context.Context, trigger Trigger) (UpdateOutcome, error) {
	art, err := s.deps.Fetcher.Fetch(ctx)
	if err != nil {
		return s.record(trigger, OutcomeFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return s.record(trigger, OutcomeFailed, err)
	}

	stored, err := s.deps.Library.Save(art.Path, art.Metadata)
	if err != nil {
		return s.record(trigger, OutcomeFailed, err)
	}
	if err := s.deps.Setter.SetWallpaper(stored); err != nil {
		return s.record(trigger, OutcomeFailed, fmt.Errorf("set wallpaper: %w", err))
	}
	applied := provider.Artwork{Path: stored, Metadata: art.Metadata}
	s.current.Store(&applied)

	if err := s.deps.History.RecordShown(art.Metadata); err != nil {
		log.Printf("Scheduler: recording history: %v", err)
	}

	now := s.now()
	st := s.mutateState(func(st *SchedulerState) {
		meta := art.Metadata
		st.LastAttemptedMetadata = &meta
		st.LastUpdateTimeMillis = now.UnixMilli()
		if trigger == TriggerScheduled {
			st.LastScheduledUpdateTimeMillis = now.UnixMilli()
		}
	})
	if err := s.deps.State.Save(st); err != nil {
		log.Printf("Scheduler: %v", err)
	}

	s.deps.Fetcher.CleanupCacheFiles(art.Metadata.Key())
	s.deps.Metrics.updated(now.Unix())
	log.Printf("Scheduler: %s update applied %q", trigger, art.Metadata.DisplayTitle())
	return s.record(trigger, OutcomeUpdated, nil)
}

func (s *Scheduler) mutateState(fn func(*SchedulerState)) SchedulerState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	fn(&s.state)
	return s.state
}

func (s *Scheduler) record(trigger Trigger, outcome UpdateOutcome, err error) (UpdateOutcome, error) {
	s.deps.Metrics.update(trigger, outcome)
	return outcome, err
}

func logOutcome(trigger Trigger, outcome UpdateOutcome, err error) {
	switch {
	case err == nil:
		log.Debugf("Scheduler: %s check: %s", trigger, outcome)
	case errors.Is(err, context.Canceled):
		log.Debugf("Scheduler: %s update cancelled", trigger)
	default:
		log.Printf("Scheduler: %s update failed: %v", trigger, err)
	}
}

// Current returns the artwork on the desktop, or nil when unknown.
func (s *Scheduler) Current() *provider.Artwork {
	return s.current.Load()
}

// Subscribe delivers the current artwork whenever it changes.
func (s *Scheduler) Subscribe() (<-chan *provider.Artwork, func()) {
	return s.current.Subscribe()
}

// IsUpdating reports whether an update holds the guard.
func (s *Scheduler) IsUpdating() bool {
	return s.updating.Value()
}

// NextRun returns the armed timer's target, zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	ms := s.nextRun.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// State returns a copy of the persisted scheduler state.
func (s *Scheduler) State() SchedulerState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}
