// Package poller keeps the guard informed about the remote flags: the admin
// row (site visibility, agreement, contact details) and the tracked account
// row (active flag).
//
// Status arrives three ways: one pull at start, a periodic pull, and pushes
// from the change feed. All of them end up in the same Handler.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/clock"
	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/dmitrijs2005/bankguard/internal/remote"
)

// Status is one observation. A nil part means no new information about
// that row.
type Status struct {
	Admin   *remote.AdminStatus
	Account *remote.AccountStatus
}

// Empty reports whether s carries nothing.
func (s Status) Empty() bool { return s.Admin == nil && s.Account == nil }

// Handler receives observations. It is called from the poller's goroutine
// and from the change feed's goroutine.
type Handler func(Status)

type AdminSource interface {
	GetAdminStatus(ctx context.Context) (remote.AdminStatus, error)
}

type AccountSource interface {
	GetAccountStatus(ctx context.Context, uuid string) (remote.AccountStatus, error)
}

// Feed is the push side, normally *remote.Listener.
type Feed interface {
	WatchAdmin(fn func(remote.AdminStatus)) (*remote.Subscription, error)
	WatchAccount(uuid string, fn func(remote.AccountStatus)) (*remote.Subscription, error)
}

type Poller struct {
	admin    AdminSource
	accounts AccountSource
	feed     Feed
	clock    clock.Clock
	log      logging.Logger
	interval time.Duration

	mu      sync.Mutex
	account string
	refresh chan struct{}

	// Owned by the Run goroutine.
	adminSub   *remote.Subscription
	acctSub    *remote.Subscription
	acctSubFor string
}

// New builds a poller. feed may be nil to disable push updates.
func New(admin AdminSource, accounts AccountSource, feed Feed, clk clock.Clock, log logging.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = common.DefaultPollInterval
	}
	return &Poller{
		admin:    admin,
		accounts: accounts,
		feed:     feed,
		clock:    clk,
		log:      log.With("component", "poller"),
		interval: interval,
		refresh:  make(chan struct{}, 1),
	}
}

// Track selects the account row to monitor and requests an immediate pull.
// An empty uuid stops account reads and drops the account subscription.
func (p *Poller) Track(uuid string) {
	p.mu.Lock()
	changed := p.account != uuid
	p.account = uuid
	p.mu.Unlock()

	if changed {
		p.Refresh()
	}
}

// ForgetAccount is Track("").
func (p *Poller) ForgetAccount() { p.Track("") }

// Tracked returns the monitored account uuid.
func (p *Poller) Tracked() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.account
}

// Refresh requests an out-of-band pull. Requests coalesce.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run pulls once, then on every tick and refresh request, until ctx ends.
func (p *Poller) Run(ctx context.Context, handle Handler) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.closeSubscriptions()

	// The initial pull covers anything requested before Run.
	select {
	case <-p.refresh:
	default:
	}
	p.cycle(ctx, handle)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.cycle(ctx, handle)
		case <-p.refresh:
			p.cycle(ctx, handle)
		}
	}
}

func (p *Poller) cycle(ctx context.Context, handle Handler) {
	p.ensureSubscriptions(ctx, handle)

	st := p.pull(ctx)
	if st.Empty() || ctx.Err() != nil {
		return
	}
	handle(st)
}

func (p *Poller) pull(ctx context.Context) Status {
	var st Status

	admin, err := p.admin.GetAdminStatus(ctx)
	switch {
	case err == nil:
		st.Admin = &admin
	case errors.Is(err, common.ErrorNotFound):
		p.log.Warn(ctx, "admin row missing")
	default:
		p.log.Warn(ctx, "admin status pull failed", "err", err)
	}

	uuid := p.Tracked()
	if uuid == "" {
		return st
	}

	acct, err := p.accounts.GetAccountStatus(ctx, uuid)
	switch {
	case err == nil:
		st.Account = &acct
	case errors.Is(err, common.ErrorNotFound):
		p.log.Debug(ctx, "account row missing", "uuid", uuid)
	default:
		p.log.Warn(ctx, "account status pull failed", "uuid", uuid, "err", err)
	}

	return st
}

func (p *Poller) ensureSubscriptions(ctx context.Context, handle Handler) {
	if p.feed == nil {
		return
	}

	if p.adminSub == nil {
		sub, err := p.feed.WatchAdmin(func(st remote.AdminStatus) {
			handle(Status{Admin: &st})
		})
		if err != nil {
			p.log.Warn(ctx, "admin subscription failed", "err", err)
		} else {
			p.adminSub = sub
		}
	}

	uuid := p.Tracked()
	if p.acctSub != nil && p.acctSubFor != uuid {
		p.acctSub.Close()
		p.acctSub = nil
		p.acctSubFor = ""
	}
	if uuid == "" || p.acctSub != nil {
		return
	}

	sub, err := p.feed.WatchAccount(uuid, func(st remote.AccountStatus) {
		if p.Tracked() != st.UUID {
			return
		}
		handle(Status{Account: &st})
	})
	if err != nil {
		p.log.Warn(ctx, "account subscription failed", "uuid", uuid, "err", err)
		return
	}
	p.acctSub = sub
	p.acctSubFor = uuid
}

func (p *Poller) closeSubscriptions() {
	p.adminSub.Close()
	p.acctSub.Close()
	p.adminSub, p.acctSub, p.acctSubFor = nil, nil, ""
}
