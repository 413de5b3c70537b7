package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Change-feed channels fed by the row triggers.
const (
	AdminChannel   = "bank_admin_changes"
	AccountChannel = "bank_user_changes"
)

// Conn is the part of *pgx.Conn the listener needs.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a dedicated connection for LISTEN.
type Dialer func(ctx context.Context) (Conn, error)

// PgxDialer dials dsn with pgx.
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type adminPayload struct {
	SiteVisible   bool    `json:"website_visibility"`
	Agreement     bool    `json:"agreement"`
	Email         *string `json:"email"`
	Address       *string `json:"address"`
	HistoryCredit Credit  `json:"history_credit"`
}

func (p adminPayload) status() AdminStatus {
	st := AdminStatus{
		SiteVisible:       p.SiteVisible,
		AgreementAccepted: p.Agreement,
		HistoryCredit:     p.HistoryCredit,
	}
	if p.Email != nil {
		st.ContactEmail = *p.Email
	}
	if p.Address != nil {
		st.ContactAddress = *p.Address
	}
	return st
}

type accountPayload struct {
	UUID   string     `json:"uuid"`
	Active ActiveFlag `json:"activeuser"`
}

type subscription struct {
	id      uint64
	account string
	admin   func(AdminStatus)
	acct    func(AccountStatus)
}

// Subscription is a registered change handler. Close stops delivery.
type Subscription struct {
	l  *Listener
	id uint64
}

func (s *Subscription) Close() {
	if s == nil || s.l == nil {
		return
	}
	s.l.remove(s.id)
}

// Listener delivers row changes pushed over LISTEN/NOTIFY. It keeps one
// dedicated connection and reconnects with exponential backoff; handlers
// survive reconnects.
type Listener struct {
	dial       Dialer
	log        logging.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.Mutex
	nextID    uint64
	subs      map[uint64]*subscription
	connected bool
}

type ListenerOption func(*Listener)

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(base, ceiling time.Duration) ListenerOption {
	return func(l *Listener) {
		l.minBackoff = base
		l.maxBackoff = ceiling
	}
}

func NewListener(dial Dialer, log logging.Logger, opts ...ListenerOption) *Listener {
	l := &Listener{
		dial:       dial,
		log:        log.With("component", "listener"),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		subs:       map[uint64]*subscription{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Connected reports whether the change feed is currently live.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// WatchAdmin registers fn for changes to the admin row. It fails with
// common.ErrNetwork while the feed is down; callers retry later.
func (l *Listener) WatchAdmin(fn func(AdminStatus)) (*Subscription, error) {
	return l.add(&subscription{admin: fn})
}

// WatchAccount registers fn for changes to the account row with uuid.
func (l *Listener) WatchAccount(uuid string, fn func(AccountStatus)) (*Subscription, error) {
	if uuid == "" {
		return nil, fmt.Errorf("watch account: %w: empty uuid", common.ErrValidation)
	}
	return l.add(&subscription{account: uuid, acct: fn})
}

func (l *Listener) add(s *subscription) (*Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return nil, fmt.Errorf("subscribe: %w: change feed not connected", common.ErrNetwork)
	}

	l.nextID++
	s.id = l.nextID
	l.subs[s.id] = s
	return &Subscription{l: l, id: s.id}, nil
}

func (l *Listener) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, id)
}

func (l *Listener) setConnected(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = v
}

// Run keeps the feed alive until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for {
		conn, err := l.connectWithRetry(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		l.setConnected(true)
		l.log.Info(ctx, "change feed connected")

		err = l.serve(ctx, conn)

		l.setConnected(false)
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = conn.Close(closeCtx)
		cancel()

		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn(ctx, "change feed lost", "err", err)
	}
}

func (l *Listener) connectWithRetry(ctx context.Context) (Conn, error) {
	b := retry.WithCappedDuration(l.maxBackoff, retry.NewExponential(l.minBackoff))

	var conn Conn
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c, err := l.connect(ctx)
		if err != nil {
			l.log.Warn(ctx, "change feed connect failed", "err", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	return conn, err
}

func (l *Listener) connect(ctx context.Context) (Conn, error) {
	c, err := l.dial(ctx)
	if err != nil {
		return nil, netErr("dial change feed", err)
	}

	for _, ch := range []string{AdminChannel, AccountChannel} {
		if _, err := c.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			_ = c.Close(ctx)
			return nil, netErr("listen "+ch, err)
		}
	}
	return c, nil
}

func (l *Listener) serve(ctx context.Context, conn Conn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, n)
	}
}

func (l *Listener) dispatch(ctx context.Context, n *pgconn.Notification) {
	switch n.Channel {
	case AdminChannel:
		var p adminPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			l.log.Warn(ctx, "bad admin payload", "err", err)
			return
		}
		st := p.status()
		for _, s := range l.snapshot() {
			if s.admin != nil {
				s.admin(st)
			}
		}

	case AccountChannel:
		var p accountPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			l.log.Warn(ctx, "bad account payload", "err", err)
			return
		}
		st := AccountStatus{UUID: p.UUID, Active: p.Active}
		for _, s := range l.snapshot() {
			if s.acct != nil && s.account == p.UUID {
				s.acct(st)
			}
		}

	default:
		l.log.Debug(ctx, "notification on unknown channel", "channel", n.Channel)
	}
}

func (l *Listener) snapshot() []*subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*subscription, 0, len(l.subs))
	for _, s := range l.subs {
		out = append(out, s)
	}
	return out
}
