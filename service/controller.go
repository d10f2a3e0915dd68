package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/util"
	"github.com/dixieflatline76/Easel/util/log"
)

// Options tune the controller's background work. Zero values use the defaults.
type Options struct {
	ReconcileInterval   time.Duration
	MaintenanceInterval time.Duration
	RestartDebounce     time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = config.ReconcileInterval
	}
	if o.MaintenanceInterval <= 0 {
		o.MaintenanceInterval = config.MaintenanceInterval
	}
	if o.RestartDebounce <= 0 {
		o.RestartDebounce = config.RestartDebounce
	}
	return o
}

// Controller owns the running state of the wallpaper service: the scheduler, the
// reconciliation and maintenance jobs, and debounced restarts after settings
// changes.
type Controller struct {
	scheduler *wallpaper.Scheduler
	jobs      []Job
	cleanup   *maintenanceJob
	opts      Options

	mu      sync.Mutex // lifecycle
	base    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
	running *util.Observable[bool]

	restartMu    sync.Mutex
	restartTimer *time.Timer
	restarts     atomic.Int32
}

// NewController creates a stopped controller.
func NewController(scheduler *wallpaper.Scheduler, store ArtworkMaintainer, history HistoryCompactor, opts Options) *Controller {
	opts = opts.withDefaults()
	maintenance := &maintenanceJob{store: store, history: history, every: opts.MaintenanceInterval}
	return &Controller{
		scheduler: scheduler,
		jobs: []Job{
			&reconcileJob{scheduler: scheduler, every: opts.ReconcileInterval},
			maintenance,
		},
		cleanup: &maintenanceJob{store: store, every: opts.MaintenanceInterval},
		opts:    opts,
		running: util.NewObservable(false),
	}
}

// StartService starts the scheduler and the periodic jobs. ctx bounds the
// service's lifetime across restarts. Starting a running service is a no-op.
func (c *Controller) StartService(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.base = ctx
	c.startLocked()
}

func (c *Controller) startLocked() {
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel

	c.scheduler.Start(ctx)
	for i, job := range c.jobs {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			// Reconciliation's first pass is the scheduler's own catch-up.
			runJob(ctx, job, i > 0)
		}()
	}
	c.running.Store(true)
	log.Print("Service: started")
}

// StopService stops the scheduler and the jobs, waiting for in-flight work.
func (c *Controller) StopService() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.scheduler.Stop()
	c.wg.Wait()
	c.cancel = nil
	c.running.Store(false)
	log.Print("Service: stopped")
}

// RestartService schedules a stop and start of a running service. Calls within
// the debounce window collapse into one restart.
func (c *Controller) RestartService() {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()
	if c.restartTimer != nil {
		c.restartTimer.Stop()
	}
	c.restartTimer = time.AfterFunc(c.opts.RestartDebounce, c.restartNow)
}

func (c *Controller) restartNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.cancel == nil {
		return
	}
	c.stopLocked()
	c.startLocked()
	c.restarts.Add(1)
	log.Print("Service: restarted")
}

// FollowSettings restarts the service whenever a settings update arrives on
// updates, until ctx is done or updates is closed.
func (c *Controller) FollowSettings(ctx context.Context, updates <-chan config.Settings) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			c.RestartService()
		}
	}
}

// Cleanup stops the service for good: a pending restart is cancelled, the store
// is trimmed and reconciled. Later calls do nothing.
func (c *Controller) Cleanup() {
	c.restartMu.Lock()
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
	c.restartMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopLocked()
	c.cleanup.Run(context.Background())
	log.Print("Service: cleaned up")
}

// NextWallpaper applies a new artwork now.
func (c *Controller) NextWallpaper(ctx context.Context) (wallpaper.UpdateOutcome, error) {
	return c.scheduler.SetNextWallpaperManually(ctx)
}

// PreviousWallpaper re-applies the artwork shown before the current one.
func (c *Controller) PreviousWallpaper(ctx context.Context) (wallpaper.UpdateOutcome, error) {
	return c.scheduler.PreviousWallpaper(ctx)
}

// IsRunning reports whether the service is started.
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// SubscribeRunning delivers the running flag whenever it changes.
func (c *Controller) SubscribeRunning() (<-chan bool, func()) {
	return c.running.Subscribe()
}

// Current returns the artwork on the desktop, or nil.
func (c *Controller) Current() *provider.Artwork {
	return c.scheduler.Current()
}

// SubscribeCurrent delivers the current artwork whenever it changes.
func (c *Controller) SubscribeCurrent() (<-chan *provider.Artwork, func()) {
	return c.scheduler.Subscribe()
}

// NextRun returns when the next scheduled update fires, zero when stopped.
func (c *Controller) NextRun() time.Time {
	return c.scheduler.NextRun()
}

// LastUpdates returns when the wallpaper last changed and when the last scheduled
// update succeeded. Zero times mean never.
func (c *Controller) LastUpdates() (last, scheduled time.Time) {
	st := c.scheduler.State()
	return st.LastUpdate(), st.LastScheduled()
}
