package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/bankguard/internal/client/config"
	"github.com/dmitrijs2005/bankguard/internal/clock"
	"github.com/dmitrijs2005/bankguard/internal/guard"
	"github.com/dmitrijs2005/bankguard/internal/i18n"
	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/dmitrijs2005/bankguard/internal/nav"
	"github.com/dmitrijs2005/bankguard/internal/poller"
	"github.com/dmitrijs2005/bankguard/internal/remote"
	"github.com/dmitrijs2005/bankguard/internal/session"
)

// accountLookup is what login needs to check an account before signing in.
type accountLookup interface {
	GetAccountStatus(ctx context.Context, uuid string) (remote.AccountStatus, error)
	FindByEmail(ctx context.Context, email string) (remote.Account, error)
}

// App is one tab: a guard, its remote feeds and the REPL driving it.
type App struct {
	config   *config.Config
	log      logging.Logger
	surface  guard.Surface
	guard    *guard.Guard
	term     *Terminal
	accounts accountLookup

	// Nil in tests that drive the guard directly.
	listener *remote.Listener
	poller   *poller.Poller
	closers  []io.Closer

	in  io.Reader
	out io.Writer
}

// NewApp opens the session store and the bank database and wires the guard.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	surface, err := guard.ParseSurface(c.Surface)
	if err != nil {
		return nil, err
	}

	routes, keys := nav.UserRoutes(c.SiteRoot), session.UserKeys
	if surface == guard.AdminSurface {
		routes, keys = nav.AdminRoutes(c.SiteRoot), session.AdminKeys
	}

	msgs, err := i18n.New(c.Language)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	sessionDB, err := session.Open(ctx, c.SessionDBPath)
	if err != nil {
		log.Error(ctx, "error initializing session database", "err", err)
		return nil, err
	}

	bankDB, err := remote.Open(ctx, c.DatabaseDSN)
	if err != nil {
		_ = sessionDB.Close()
		return nil, err
	}

	clk := clock.Real()
	accounts := remote.NewPostgresAccountRepository(bankDB)
	admin := remote.NewPostgresAdminRepository(bankDB)
	listener := remote.NewListener(remote.PgxDialer(c.DatabaseDSN), log)
	p := poller.New(admin, accounts, listener, clk, log, c.PollInterval)
	term := NewTerminal(os.Stdout)

	g := guard.New(guard.Config{
		Surface:        surface,
		Routes:         routes,
		Location:       routes.Resolve(nav.Landing),
		Timeout:        c.InactivityTimeout,
		HiddenGrace:    c.HiddenGrace,
		MaxPINAttempts: c.MaxPINAttempts,
	}, guard.Deps{
		Clock:    clk,
		Store:    session.NewSQLiteStore(sessionDB, keys),
		Accounts: accounts,
		Admin:    admin,
		Tracker:  p,
		UI:       term,
		Messages: msgs,
		Log:      log,
	})

	return &App{
		config:   c,
		log:      log,
		surface:  surface,
		guard:    g,
		term:     term,
		accounts: accounts,
		listener: listener,
		poller:   p,
		closers:  []io.Closer{sessionDB, bankDB},
		in:       os.Stdin,
		out:      os.Stdout,
	}, nil
}

// Run starts the guard, the change feed and the poller, then serves the REPL
// until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return a.guard.Run(gctx) })
	if a.listener != nil {
		grp.Go(func() error { return a.listener.Run(gctx) })
	}
	if a.poller != nil {
		grp.Go(func() error { return a.poller.Run(gctx, a.guard.ApplyStatus) })
	}

	a.term.Println("Bank session guard (type 'help' for commands)")

	// The scanner may stay blocked on stdin after ctx ends; the process
	// exits anyway.
	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		runREPL(gctx, a, a.statusLine, bufio.NewScanner(a.in))
	}()

	select {
	case <-replDone:
	case <-gctx.Done():
	}
	cancel()

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the databases.
func (a *App) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

func (a *App) statusLine() string {
	return fmt.Sprintf("(%s %s)", a.surface, a.guard.State())
}
