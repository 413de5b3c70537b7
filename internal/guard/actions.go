package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/i18n"
	"github.com/dmitrijs2005/bankguard/internal/monitor"
	"github.com/dmitrijs2005/bankguard/internal/nav"
	"github.com/dmitrijs2005/bankguard/internal/poller"
	"github.com/dmitrijs2005/bankguard/internal/remote"
	"github.com/dmitrijs2005/bankguard/internal/session"
)

// ApplyStatus feeds a remote observation to the guard. It does not wait and
// is safe to call from any goroutine; it is the poller's Handler.
func (g *Guard) ApplyStatus(st poller.Status) {
	g.post(func(ctx context.Context) { g.evaluate(ctx, st) })
}

// Interaction records user activity of the given kind.
func (g *Guard) Interaction(ctx context.Context, kind monitor.Kind) error {
	return g.do(ctx, func(ctx context.Context) error {
		return g.mon.Interaction(ctx, kind)
	})
}

// Hidden reports that the tab went to the background.
func (g *Guard) Hidden(ctx context.Context) error {
	return g.do(ctx, func(context.Context) error {
		g.mon.Hidden()
		return nil
	})
}

// Visible reports that the tab is in the foreground again. The shared
// session record is re-read right away.
func (g *Guard) Visible(ctx context.Context) error {
	return g.do(ctx, func(ctx context.Context) error {
		g.mon.Visible()
		g.syncFromStore(ctx)
		g.deps.Tracker.Refresh()
		return nil
	})
}

// SubmitPIN verifies pin against the account row. It returns nil on unlock,
// an error wrapping common.ErrValidation on a wrong PIN, common.ErrRestricted
// once the account is restricted, and common.ErrPINPending while another
// verification is in flight. A remote failure wraps common.ErrNetwork and
// does not count as an attempt.
func (g *Guard) SubmitPIN(ctx context.Context, pin string) error {
	reply := make(chan error, 1)

	err := g.do(ctx, func(ctx context.Context) error {
		if g.state != Locked {
			return fmt.Errorf("submit pin in %s: %w", g.state, common.ErrNotAllowed)
		}
		if g.pinPending {
			return common.ErrPINPending
		}
		g.pinPending = true
		uid := g.record.User()

		var st remote.AccountStatus
		g.async(func(ctx context.Context) error {
			var err error
			st, err = g.deps.Accounts.GetAccountStatus(ctx, uid)
			return err
		}, func(ctx context.Context, err error, stale bool) {
			g.checkPIN(ctx, pin, st, err, stale, reply)
		})
		return nil
	})
	if err != nil {
		return err
	}

	return g.await(ctx, reply)
}

func (g *Guard) checkPIN(ctx context.Context, pin string, st remote.AccountStatus, err error, stale bool, reply chan<- error) {
	if stale || g.state != Locked {
		reply <- fmt.Errorf("pin check: %w", common.ErrStateConflict)
		return
	}
	g.pinPending = false

	if err != nil {
		g.log.Warn(ctx, "pin check: account read failed", "err", err)
		if errors.Is(err, common.ErrorNotFound) {
			err = fmt.Errorf("%w: %w", common.ErrNetwork, err)
		}
		g.deps.UI.ShowValidation(PromptLock, g.text(i18n.LockUnavailable, errText(err)))
		reply <- fmt.Errorf("pin check: %w", err)
		return
	}

	acct := st
	g.account = &acct

	if st.Restricted() {
		g.restrict(ctx, "account flag")
		reply <- fmt.Errorf("pin check: %w: %w", common.ErrStateConflict, common.ErrRestricted)
		return
	}

	if g.exhausted {
		g.escalate(ctx, reply)
		return
	}

	if st.CheckPIN(pin) {
		g.unlock(ctx, reply)
		return
	}

	g.attempts++
	if g.attempts >= g.cfg.MaxPINAttempts {
		g.exhausted = true
		g.escalate(ctx, reply)
		return
	}

	g.log.Info(ctx, "wrong pin", "attempts", g.attempts)
	g.deps.UI.ShowValidation(PromptLock, g.text(i18n.LockInvalid, attemptsLeft(g.cfg.MaxPINAttempts, g.attempts)))
	reply <- fmt.Errorf("%w: wrong pin, %d attempts left", common.ErrValidation, g.cfg.MaxPINAttempts-g.attempts)
}

func (g *Guard) unlock(ctx context.Context, reply chan<- error) {
	rec := g.record
	rec.LockedLocally = false
	now := g.deps.Clock.Now()
	rec.LastActiveAt = &now

	if err := g.deps.Store.Save(ctx, rec); err != nil {
		g.log.Error(ctx, "failed to clear screen lock", "err", err)
		reply <- fmt.Errorf("unlock: %w", err)
		return
	}

	g.record = rec
	g.attempts = 0
	g.mon.Arm(now)
	g.deps.UI.DismissPrompt(PromptLock)
	g.setState(ctx, Active)
	reply <- nil
}

// escalate writes the restriction after too many wrong PINs. Until the
// write succeeds the guard stays LOCKED and the next submission retries it.
func (g *Guard) escalate(ctx context.Context, reply chan<- error) {
	g.pinPending = true
	uid := g.record.User()

	g.async(func(ctx context.Context) error {
		return g.deps.Accounts.SetActive(ctx, uid, false)
	}, func(ctx context.Context, err error, stale bool) {
		if stale || g.state != Locked {
			reply <- fmt.Errorf("restrict account: %w", common.ErrStateConflict)
			return
		}
		g.pinPending = false

		if err != nil {
			g.log.Error(ctx, "failed to persist restriction", "uuid", uid, "err", err)
			g.deps.UI.ShowValidation(PromptLock, g.text(i18n.LockUnavailable, errText(err)))
			reply <- fmt.Errorf("restrict account: %w", err)
			return
		}

		g.restrict(ctx, "too many wrong pins")
		reply <- common.ErrRestricted
	})
}

// AcceptAgreement records the admin's acceptance of the legal agreement.
// The guard stays AWAITING_AGREEMENT until the write succeeds.
func (g *Guard) AcceptAgreement(ctx context.Context) error {
	reply := make(chan error, 1)

	err := g.do(ctx, func(ctx context.Context) error {
		if g.state != AwaitingAgreement {
			return fmt.Errorf("accept agreement in %s: %w", g.state, common.ErrNotAllowed)
		}
		if g.agreePending {
			return common.ErrActionPending
		}
		g.agreePending = true

		g.async(func(ctx context.Context) error {
			return g.deps.Admin.SetAgreement(ctx, true)
		}, func(ctx context.Context, err error, stale bool) {
			if stale {
				reply <- fmt.Errorf("accept agreement: %w", common.ErrStateConflict)
				return
			}
			g.agreePending = false

			if err != nil {
				g.log.Warn(ctx, "failed to persist agreement", "err", err)
				g.deps.UI.ShowValidation(PromptAgreement, g.text(i18n.AgreementFailed, errText(err)))
				reply <- fmt.Errorf("accept agreement: %w", err)
				return
			}

			if g.admin != nil {
				admin := *g.admin
				admin.AgreementAccepted = true
				g.admin = &admin
			}
			if g.state == AwaitingAgreement {
				g.setState(ctx, Active)
				g.deps.UI.DismissPrompt(PromptAgreement)
			}
			reply <- nil
		})
		return nil
	})
	if err != nil {
		return err
	}

	return g.await(ctx, reply)
}

// AcknowledgeRestriction closes the restriction notice and leaves for the
// login page.
func (g *Guard) AcknowledgeRestriction(ctx context.Context) error {
	return g.do(ctx, func(ctx context.Context) error {
		if g.state != Restricted {
			return fmt.Errorf("acknowledge in %s: %w", g.state, common.ErrNotAllowed)
		}
		g.deps.UI.DismissPrompt(PromptRestricted)
		g.redirect(nav.Login)
		return nil
	})
}

// Logout wipes local storage and leaves for the login page. On a storage
// failure nothing changes.
func (g *Guard) Logout(ctx context.Context) error {
	return g.do(ctx, func(ctx context.Context) error {
		if err := g.deps.Store.Wipe(ctx); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		g.log.Info(ctx, "logout", "from", g.state.String())

		g.resetTransient()
		g.deps.UI.DismissPrompt(PromptLock)
		g.deps.UI.DismissPrompt(PromptAgreement)
		g.deps.UI.DismissPrompt(PromptRestricted)
		g.account = nil
		g.toLoggedOut(ctx)
		return nil
	})
}

// Login records a fresh session for uid, the way the login page does, and
// reloads. The guard itself does not authenticate. It is refused while a
// session is live: a locked tab leaves LOCKED only through the PIN, logout,
// restriction or expiry.
func (g *Guard) Login(ctx context.Context, uid string) error {
	return g.do(ctx, func(ctx context.Context) error {
		if g.state != LoggedOut && g.state != Restricted {
			return fmt.Errorf("login in %s: %w", g.state, common.ErrNotAllowed)
		}
		if uid == "" {
			return fmt.Errorf("login: %w: empty user id", common.ErrValidation)
		}
		if err := g.deps.Store.Save(ctx, session.LoggedInAs(uid, g.deps.Clock.Now())); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		g.location = g.cfg.Routes.Resolve(nav.Landing)
		g.reload(ctx)
		return nil
	})
}

// Reload re-initialises the guard from storage, like a page reload.
func (g *Guard) Reload(ctx context.Context) error {
	return g.do(ctx, func(ctx context.Context) error {
		g.reload(ctx)
		return nil
	})
}

// Snapshot returns the current view of the guard. After Run returns it
// reports the final state.
func (g *Guard) Snapshot(ctx context.Context) (Snapshot, error) {
	if !g.running.Load() {
		return *g.last.Load(), nil
	}
	err := g.do(ctx, func(context.Context) error {
		g.publish()
		return nil
	})
	if errors.Is(err, common.ErrGuardStopped) {
		return *g.last.Load(), nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return *g.last.Load(), nil
}

// State is a shorthand for Snapshot().State.
func (g *Guard) State() State {
	s, _ := g.Snapshot(context.Background())
	return s.State
}
