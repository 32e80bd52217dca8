package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/store"
)

const (
	// DefaultMaxRetries is the number of failed attempts after which a
	// pending action is dead-lettered.
	DefaultMaxRetries = 5

	// DefaultCallTimeout bounds each pull and each gateway write.
	DefaultCallTimeout = 15 * time.Second
)

// Options configures a Coordinator.
type Options struct {
	// MaxRetries dead-letters an action after this many failures.
	// Zero uses DefaultMaxRetries.
	MaxRetries int

	// ClearOnSignOut wipes the local cache, unsent writes included, when
	// the session ends.
	ClearOnSignOut bool

	// CallTimeout bounds each pull and each write. Zero uses
	// DefaultCallTimeout.
	CallTimeout time.Duration

	// Offline starts the coordinator without connectivity.
	Offline bool
}

// Coordinator is the single-writer sync event loop.
//
// Thread-safety model:
//   - signal methods (Hydrated, SignIn, SignOut, SetOnline, Refresh,
//     RequestDrain) and Flush: safe from any goroutine
//   - Run: must be called from exactly one goroutine, once
//   - SyncOnce: only when Run is not running
type Coordinator struct {
	store          *store.Store
	gw             gateway.Gateway
	queue          *eventQueue
	stopped        chan struct{}
	maxRetries     int
	clearOnSignOut bool
	callTimeout    time.Duration

	// Owned by the Run goroutine.
	running   bool
	hydrated  bool
	session   *gateway.Identity
	pulled    bool // one pull per session
	rejected  bool // the backend refused the session
	gen       uint64
	pulling   bool // the pull for gen has not reported back
	online    bool
	sub       uint64
	subFamily string
	cancelSub context.CancelFunc
}

// New creates a Coordinator for st against gw and registers itself as the
// store's pending hook, so every queued write requests a drain.
func New(st *store.Store, gw gateway.Gateway, opts Options) *Coordinator {
	c := &Coordinator{
		store:          st,
		gw:             gw,
		queue:          newEventQueue(),
		stopped:        make(chan struct{}),
		maxRetries:     opts.MaxRetries,
		clearOnSignOut: opts.ClearOnSignOut,
		callTimeout:    opts.CallTimeout,
		online:         !opts.Offline,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.callTimeout <= 0 {
		c.callTimeout = DefaultCallTimeout
	}
	st.OnPending(c.RequestDrain)
	st.SetStatus(func(s *store.Status) { s.Online = c.online })
	return c
}

// Enqueue submits an event to the Run loop.
// Returns false if the coordinator has stopped.
func (c *Coordinator) Enqueue(ev Event) bool {
	return c.queue.Enqueue(ev)
}

// Hydrated signals that the store has loaded its snapshot. No gateway call
// is made before this signal.
func (c *Coordinator) Hydrated() { c.Enqueue(Event{Type: EventHydrated}) }

// SignIn signals a new session.
func (c *Coordinator) SignIn(id gateway.Identity) {
	c.Enqueue(Event{Type: EventSignedIn, Identity: id})
}

// SignOut ends the session.
func (c *Coordinator) SignOut() { c.Enqueue(Event{Type: EventSignedOut}) }

// SetOnline reports a connectivity change.
func (c *Coordinator) SetOnline(online bool) {
	if online {
		c.Enqueue(Event{Type: EventOnline})
		return
	}
	c.Enqueue(Event{Type: EventOffline})
}

// Refresh forces a pull for the current session.
func (c *Coordinator) Refresh() { c.Enqueue(Event{Type: EventRefresh}) }

// RequestDrain asks for a drain pass.
func (c *Coordinator) RequestDrain() { c.Enqueue(Event{Type: EventDrain}) }

// Run starts the event loop. It blocks until ctx is cancelled or Stop is
// called, and cancels the realtime subscription on the way out.
func (c *Coordinator) Run(ctx context.Context) error {
	slog.Info("syncer starting", "online", c.online)
	c.running = true
	defer close(c.stopped)
	defer c.stopSubscription()

	for {
		if ev, ok := c.queue.TryDequeue(); ok {
			c.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("syncer stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()
		case <-c.queue.Wait():
			if c.queue.Closed() && c.queue.Len() == 0 {
				slog.Info("syncer stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue; Run returns once it is drained.
func (c *Coordinator) Stop() {
	c.queue.Close()
}

// Flush runs a drain pass bounded by ctx and waits for it. It is meant for
// teardown: whatever is still queued afterwards stays persisted for the
// next start.
func (c *Coordinator) Flush(ctx context.Context) error {
	req := &flushRequest{ctx: ctx, done: make(chan struct{})}
	if !c.queue.Enqueue(Event{Type: EventFlush, Flush: req}) {
		return ErrStopped
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

// SyncOnce signs in as id, pulls, and drains synchronously. It is the
// one-shot alternative to Run and must not be called while Run is running.
// Unlike the loop it reports the pull error to the caller.
func (c *Coordinator) SyncOnce(ctx context.Context, id gateway.Identity) error {
	if !c.store.Hydrated() {
		return ErrNotHydrated
	}
	if id.UserID == "" {
		return ErrNoSession
	}
	c.hydrated = true
	c.online = true
	c.session = &id
	c.rejected = false
	c.store.SetStatus(func(s *store.Status) {
		s.SignedIn = true
		s.Online = true
	})

	c.gen++
	c.pulled = true
	c.setSyncing()
	pctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	rs, err := c.fetch(pctx)
	cancel()
	c.handlePull(ctx, &pullResult{gen: c.gen, state: rs, err: err})
	return err
}

// process routes an event. Called only from the Run goroutine.
func (c *Coordinator) process(ctx context.Context, ev Event) {
	slog.Debug("syncer event", "event", ev.Type)

	switch ev.Type {
	case EventHydrated:
		c.onHydrated(ctx)
	case EventSignedIn:
		c.onSignedIn(ctx, ev.Identity)
	case EventSignedOut:
		c.endSession()
	case EventOnline:
		c.online = true
		c.store.SetStatus(func(s *store.Status) { s.Online = true })
		if c.ready() && !c.pulled {
			c.startPull(ctx, "online")
			return
		}
		c.drain(ctx)
	case EventOffline:
		c.online = false
		c.store.SetStatus(func(s *store.Status) { s.Online = false })
	case EventRefresh:
		if !c.ready() {
			slog.Debug("syncer: refresh ignored without a hydrated session")
			return
		}
		c.startPull(ctx, "refresh")
	case EventPush:
		if ev.Push == nil || ev.Push.sub != c.sub {
			return
		}
		c.applyChange(ev.Push.change)
	case EventPullResult:
		if ev.Pull != nil {
			c.handlePull(ctx, ev.Pull)
		}
	case EventDrain:
		c.drain(ctx)
	case EventFlush:
		if ev.Flush != nil {
			c.drain(ev.Flush.ctx)
			close(ev.Flush.done)
		}
	default:
		slog.Warn("syncer: unknown event", "type", int(ev.Type))
	}
}

func (c *Coordinator) onHydrated(ctx context.Context) {
	if !c.store.Hydrated() {
		slog.Warn("syncer: hydrated signal before the store loaded")
		return
	}
	c.hydrated = true
	if c.session == nil {
		c.setGuest()
		return
	}
	if !c.pulled {
		c.startPull(ctx, "hydrated")
	}
}

func (c *Coordinator) onSignedIn(ctx context.Context, id gateway.Identity) {
	if c.session != nil && c.session.UserID == id.UserID {
		return
	}
	if c.session != nil {
		c.endSession()
	}
	c.session = &id
	c.rejected = false
	c.store.SetStatus(func(s *store.Status) { s.SignedIn = true })
	slog.Info("syncer: signed in", "user", id.UserID)

	if !c.hydrated {
		slog.Debug("syncer: pull deferred until hydration", "user", id.UserID)
		return
	}
	if !c.pulled {
		c.startPull(ctx, "signed_in")
	}
}

// endSession forgets the session, discards in-flight pulls, and stops push.
func (c *Coordinator) endSession() {
	if c.session != nil {
		slog.Info("syncer: signed out", "user", c.session.UserID)
	}
	c.session = nil
	c.pulled = false
	c.pulling = false
	c.rejected = false
	c.gen++
	c.stopSubscription()
	if c.clearOnSignOut {
		c.store.Reset()
	}
	c.store.SetStatus(func(s *store.Status) {
		s.SignedIn = false
		s.Syncing = false
		s.LastError = ""
	})
	if c.hydrated {
		c.setGuest()
	} else {
		c.store.SetStatus(func(s *store.Status) { s.State = store.StateIdle })
	}
}

// ready reports whether a pull may be attempted.
func (c *Coordinator) ready() bool {
	return c.hydrated && c.session != nil
}

func (c *Coordinator) setGuest() {
	c.store.SetStatus(func(s *store.Status) {
		s.State = store.StateSynced
		s.Loaded = true
		s.Syncing = false
	})
}

func (c *Coordinator) setSyncing() {
	c.store.SetStatus(func(s *store.Status) {
		s.State = store.StateSyncing
		s.Syncing = true
	})
}

func (c *Coordinator) recordError(err error) {
	c.store.SetStatus(func(s *store.Status) { s.LastError = err.Error() })
}
