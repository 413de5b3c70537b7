// Package guard decides, at any moment, whether the current tab may show
// account data.
//
// A Guard combines three inputs into one state: local timers (inactivity
// and hidden-tab grace, via the monitor), remote flags (site visibility,
// legal agreement, account restriction, via the poller) and explicit user
// actions (PIN entry, agreement acceptance, logout). It reads and writes the
// local session store and drives the page through the UI interface.
//
// All state lives on a single event loop started by Run. Public methods post
// work to the loop and wait for it. Remote I/O runs in helper goroutines
// whose results are posted back; a result that arrives after the guard was
// re-initialised or stopped is discarded.
package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/clock"
	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/dmitrijs2005/bankguard/internal/monitor"
	"github.com/dmitrijs2005/bankguard/internal/nav"
	"github.com/dmitrijs2005/bankguard/internal/remote"
	"github.com/dmitrijs2005/bankguard/internal/session"
)

type Accounts interface {
	GetAccountStatus(ctx context.Context, uuid string) (remote.AccountStatus, error)
	SetActive(ctx context.Context, uuid string, active bool) error
}

type Admin interface {
	SetAgreement(ctx context.Context, accepted bool) error
}

// Tracker is told which account row to watch. *poller.Poller implements it.
type Tracker interface {
	Track(uuid string)
	Refresh()
}

type Config struct {
	Surface Surface
	Routes  nav.Routes

	// Location is the page the tab starts on.
	Location string

	Timeout        time.Duration
	HiddenGrace    time.Duration
	MaxPINAttempts int

	// IOTimeout bounds each remote call made on behalf of a user action.
	IOTimeout time.Duration
}

type Deps struct {
	Clock    clock.Clock
	Store    session.Store
	Accounts Accounts
	Admin    Admin
	Tracker  Tracker
	UI       UI
	Messages Messages
	Log      logging.Logger
}

// Snapshot is a consistent view of the guard for status displays.
type Snapshot struct {
	State        State
	Surface      Surface
	UserID       string
	Location     string
	Attempts     int
	Deadline     time.Time
	Hidden       bool
	PINPending   bool
	AgreePending bool
}

type Guard struct {
	cfg  Config
	deps Deps
	log  logging.Logger
	mon  *monitor.Monitor

	mu     sync.Mutex
	queue  []func(context.Context)
	closed bool
	wake   chan struct{}
	done   chan struct{}

	running atomic.Bool
	last    atomic.Pointer[Snapshot]

	// Loop-owned.
	ctx          context.Context
	state        State
	record       session.Record
	location     string
	epoch        uint64
	attempts     int
	exhausted    bool
	pinPending   bool
	agreePending bool
	admin        *remote.AdminStatus
	account      *remote.AccountStatus
}

type nopUI struct{}

func (nopUI) Redirect(string)                   {}
func (nopUI) Reload()                           {}
func (nopUI) ShowPrompt(Prompt)                 {}
func (nopUI) DismissPrompt(PromptKind)          {}
func (nopUI) ShowValidation(PromptKind, string) {}
func (nopUI) ShowFooter(string, string)         {}

type noopTracker struct{}

func (noopTracker) Track(string) {}
func (noopTracker) Refresh()     {}

func New(cfg Config, deps Deps) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = common.InactivityTimeout
	}
	if cfg.HiddenGrace <= 0 {
		cfg.HiddenGrace = common.HiddenGracePeriod
	}
	if cfg.MaxPINAttempts <= 0 {
		cfg.MaxPINAttempts = common.MaxPINAttempts
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 10 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.UI == nil {
		deps.UI = nopUI{}
	}
	if deps.Tracker == nil {
		deps.Tracker = noopTracker{}
	}
	if deps.Log == nil {
		deps.Log = logging.NewNopLogger()
	}

	g := &Guard{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Log.With("component", "guard", "surface", cfg.Surface.String()),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		location: cfg.Location,
	}
	g.mon = monitor.New(deps.Clock, deps.Store, func(f func()) {
		g.post(func(context.Context) { f() })
	}, deps.Log, monitor.Options{
		Timeout:         cfg.Timeout,
		HiddenGrace:     cfg.HiddenGrace,
		OnExpired:       g.onInactivity,
		OnHiddenExpired: g.onHiddenTooLong,
	})
	g.publish()
	return g
}

// Run resolves the initial state and processes events until ctx ends. A
// guard runs at most once.
func (g *Guard) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return common.ErrGuardStopped
	}
	g.ctx = ctx
	defer g.teardown()

	g.init(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.wake:
			g.drain(ctx)
		}
	}
}

func (g *Guard) drain(ctx context.Context) {
	g.mu.Lock()
	batch := g.queue
	g.queue = nil
	g.mu.Unlock()

	for _, fn := range batch {
		fn(ctx)
	}
	g.publish()
}

func (g *Guard) teardown() {
	g.mu.Lock()
	g.closed = true
	g.queue = nil
	g.mu.Unlock()

	g.mon.Stop()
	g.publish()
	close(g.done)
}

// post schedules fn on the loop. It never blocks and reports false once the
// guard has stopped.
func (g *Guard) post(fn func(context.Context)) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.queue = append(g.queue, fn)
	g.mu.Unlock()

	select {
	case g.wake <- struct{}{}:
	default:
	}
	return true
}

// do runs fn on the loop and waits for its result.
func (g *Guard) do(ctx context.Context, fn func(context.Context) error) error {
	res := make(chan error, 1)
	if !g.post(func(ctx context.Context) { res <- fn(ctx) }) {
		return common.ErrGuardStopped
	}

	select {
	case err := <-res:
		return err
	case <-g.done:
		select {
		case err := <-res:
			return err
		default:
			return common.ErrGuardStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for the reply of an action whose remote part is in flight.
func (g *Guard) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-g.done:
		return common.ErrGuardStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// async runs call off the loop with a detached, bounded context and posts
// finish back to the loop. finish sees stale=true when the guard was
// re-initialised in the meantime.
func (g *Guard) async(call func(ctx context.Context) error, finish func(ctx context.Context, err error, stale bool)) {
	epoch := g.epoch
	ioCtx, cancel := context.WithTimeout(context.WithoutCancel(g.ctx), g.cfg.IOTimeout)

	go func() {
		defer cancel()
		err := call(ioCtx)
		g.post(func(ctx context.Context) {
			finish(ctx, err, epoch != g.epoch)
		})
	}()
}

func (g *Guard) publish() {
	s := &Snapshot{
		State:        g.state,
		Surface:      g.cfg.Surface,
		UserID:       g.record.User(),
		Location:     g.location,
		Attempts:     g.attempts,
		Hidden:       g.mon.IsHidden(),
		PINPending:   g.pinPending,
		AgreePending: g.agreePending,
	}
	if d, ok := g.mon.Deadline(); ok {
		s.Deadline = d
	}
	g.last.Store(s)
}
