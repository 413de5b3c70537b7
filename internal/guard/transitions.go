package guard

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bankguard/internal/i18n"
	"github.com/dmitrijs2005/bankguard/internal/nav"
	"github.com/dmitrijs2005/bankguard/internal/poller"
	"github.com/dmitrijs2005/bankguard/internal/session"
)

func (g *Guard) setState(ctx context.Context, s State) {
	if g.state == s {
		return
	}
	g.log.Info(ctx, "state change", "from", g.state.String(), "to", s.String())
	g.state = s
}

func (g *Guard) text(id string, data map[string]any) string {
	if g.deps.Messages == nil {
		return id
	}
	return g.deps.Messages.Text(id, data)
}

// redirect navigates to t unless the tab is already there.
func (g *Guard) redirect(t nav.Target) {
	if g.cfg.Routes.IsAt(g.location, t) {
		return
	}
	g.location = g.cfg.Routes.Resolve(t)
	g.deps.UI.Redirect(g.location)
}

// resetTransient forgets everything that does not survive a reload.
func (g *Guard) resetTransient() {
	g.epoch++
	g.mon.Stop()
	g.attempts = 0
	g.exhausted = false
	g.pinPending = false
	g.agreePending = false
}

// init resolves the starting state from the local record and the last
// known remote status.
func (g *Guard) init(ctx context.Context) {
	g.resetTransient()

	rec, err := g.deps.Store.Load(ctx)
	if err != nil {
		g.log.Error(ctx, "session store unreadable, treating tab as logged out", "err", err)
		rec = session.Record{}
	}
	g.record = rec

	if g.admin != nil && !g.admin.SiteVisible {
		g.siteDown(ctx)
		return
	}

	if !g.loggedIn() {
		g.toLoggedOut(ctx)
		g.reapply(ctx)
		return
	}

	now := g.deps.Clock.Now()
	lastActive := now
	if rec.LastActiveAt != nil {
		lastActive = *rec.LastActiveAt
	}
	if !now.Before(lastActive.Add(g.cfg.Timeout)) {
		g.log.Info(ctx, "stored session expired")
		g.expire(ctx)
		g.reapply(ctx)
		return
	}

	g.trackAccount()
	g.mon.Arm(lastActive)

	if rec.LockedLocally && g.cfg.Surface == UserSurface {
		g.enterLocked(ctx)
	} else {
		g.setState(ctx, Active)
	}
	g.reapply(ctx)
	g.deps.Tracker.Refresh()
}

func (g *Guard) loggedIn() bool {
	if !g.record.LoggedIn {
		return false
	}
	if g.cfg.Surface == AdminSurface && g.record.User() == "" {
		return false
	}
	return true
}

func (g *Guard) trackAccount() {
	if g.cfg.Surface == UserSurface {
		g.deps.Tracker.Track(g.record.User())
	} else {
		g.deps.Tracker.Track("")
	}
}

// reapply evaluates the last known remote status against a fresh state.
func (g *Guard) reapply(ctx context.Context) {
	st := poller.Status{Admin: g.admin}
	if g.account != nil && g.account.UUID == g.record.User() && g.cfg.Surface == UserSurface {
		st.Account = g.account
	}
	if !st.Empty() {
		g.evaluate(ctx, st)
	}
}

// reload re-initialises the guard the way a page reload would.
func (g *Guard) reload(ctx context.Context) {
	g.deps.UI.Reload()
	g.init(ctx)
}

func (g *Guard) toLoggedOut(ctx context.Context) {
	g.mon.Stop()
	g.record = session.Record{}
	g.deps.Tracker.Track("")
	g.setState(ctx, LoggedOut)
	g.redirect(nav.Login)
}

// evaluate applies one remote observation. Pulled and pushed statuses both
// end up here.
func (g *Guard) evaluate(ctx context.Context, st poller.Status) {
	if st.Admin != nil {
		admin := *st.Admin
		g.admin = &admin
		g.deps.UI.ShowFooter(admin.ContactEmail, admin.ContactAddress)

		if !admin.SiteVisible {
			g.siteDown(ctx)
			return
		}
		if g.state == SiteDown {
			g.log.Info(ctx, "site is back")
			// init matches the account against the reloaded session.
			if st.Account != nil && g.cfg.Surface == UserSurface {
				acct := *st.Account
				g.account = &acct
			}
			g.init(ctx)
			if g.cfg.Routes.IsAt(g.location, nav.Unavailable) && g.state.hasSession() {
				g.redirect(nav.Landing)
			}
			return
		}

		if g.cfg.Surface == AdminSurface {
			switch {
			case !admin.AgreementAccepted && g.state == Active:
				g.setState(ctx, AwaitingAgreement)
				g.deps.UI.ShowPrompt(g.agreementPrompt())
			case admin.AgreementAccepted && g.state == AwaitingAgreement:
				g.setState(ctx, Active)
				g.deps.UI.DismissPrompt(PromptAgreement)
			}
		}
	}

	if st.Account != nil && g.cfg.Surface == UserSurface {
		uid := g.record.User()
		if uid == "" || st.Account.UUID != uid {
			return
		}
		acct := *st.Account
		g.account = &acct

		if acct.Restricted() && g.state.hasSession() {
			g.restrict(ctx, "account flag")
		}
	}
}

func (g *Guard) siteDown(ctx context.Context) {
	if g.state != SiteDown {
		g.resetTransient()
		g.setState(ctx, SiteDown)
	}
	g.redirect(nav.Unavailable)
}

// enterLocked shows the PIN prompt, or goes straight to RESTRICTED when the
// account is already known to be restricted.
func (g *Guard) enterLocked(ctx context.Context) {
	if g.account != nil && g.account.UUID == g.record.User() && g.account.Restricted() {
		g.restrict(ctx, "account flag")
		return
	}
	g.attempts = 0
	g.exhausted = false
	g.setState(ctx, Locked)
	g.deps.UI.ShowPrompt(g.lockPrompt())
}

// restrict ends the session for a restricted account. The state stays
// RESTRICTED until a reload.
func (g *Guard) restrict(ctx context.Context, reason string) {
	g.log.Warn(ctx, "account restricted", "reason", reason, "uuid", g.record.User())

	wasLocked := g.state == Locked
	g.resetTransient()
	if err := g.deps.Store.Clear(ctx); err != nil {
		g.log.Error(ctx, "failed to clear session", "err", err)
	}
	g.record = session.Record{}
	g.deps.Tracker.Track("")

	if wasLocked {
		g.deps.UI.DismissPrompt(PromptLock)
	}
	g.deps.UI.DismissPrompt(PromptAgreement)
	g.setState(ctx, Restricted)
	g.deps.UI.ShowPrompt(Prompt{
		Kind:    PromptRestricted,
		Title:   g.text(i18n.RestrictedTitle, nil),
		Body:    g.text(i18n.RestrictedBody, nil),
		Confirm: g.text(i18n.RestrictedConfirm, nil),
	})
}

// expire is the forced logout after inactivity.
func (g *Guard) expire(ctx context.Context) {
	g.resetTransient()
	if err := g.deps.Store.Clear(ctx); err != nil {
		g.log.Error(ctx, "failed to clear expired session", "err", err)
	}
	g.deps.UI.DismissPrompt(PromptLock)
	g.deps.UI.DismissPrompt(PromptAgreement)
	g.deps.UI.ShowPrompt(Prompt{
		Kind:  PromptExpired,
		Title: g.text(i18n.ExpiredTitle, nil),
		Body:  g.text(i18n.ExpiredBody, nil),
	})
	g.toLoggedOut(ctx)
}

func (g *Guard) onInactivity() {
	if !g.state.hasSession() {
		return
	}
	g.log.Info(g.ctx, "inactivity timeout")
	g.expire(g.ctx)
}

// onHiddenTooLong locks a user tab that stayed hidden past the grace period.
func (g *Guard) onHiddenTooLong() {
	ctx := g.ctx
	if g.cfg.Surface != UserSurface || g.state != Active {
		return
	}

	g.record.LockedLocally = true
	if err := g.deps.Store.Save(ctx, g.record); err != nil {
		g.log.Error(ctx, "failed to persist screen lock", "err", err)
		g.toLoggedOut(ctx)
		return
	}
	g.log.Info(ctx, "tab hidden too long, locking")
	g.reload(ctx)
}

// syncFromStore re-reads the shared record when the tab becomes visible.
// Another tab may have logged out or locked the session meanwhile.
func (g *Guard) syncFromStore(ctx context.Context) {
	if !g.state.hasSession() {
		return
	}

	rec, err := g.deps.Store.Load(ctx)
	if err != nil {
		g.log.Error(ctx, "session store unreadable", "err", err)
		g.toLoggedOut(ctx)
		return
	}

	if !rec.LoggedIn || rec.User() != g.record.User() {
		g.log.Info(ctx, "session ended in another tab")
		g.resetTransient()
		g.deps.UI.DismissPrompt(PromptLock)
		g.toLoggedOut(ctx)
		return
	}

	g.record = rec
	if rec.LockedLocally && g.state == Active && g.cfg.Surface == UserSurface {
		g.enterLocked(ctx)
	}
}

func (g *Guard) lockPrompt() Prompt {
	return Prompt{
		Kind:    PromptLock,
		Title:   g.text(i18n.LockTitle, nil),
		Body:    g.text(i18n.LockBody, nil),
		Confirm: g.text(i18n.LockConfirm, nil),
		Cancel:  g.text(i18n.LockCancel, nil),
		Input:   true,
	}
}

func (g *Guard) agreementPrompt() Prompt {
	return Prompt{
		Kind:    PromptAgreement,
		Title:   g.text(i18n.AgreementTitle, nil),
		Body:    g.text(i18n.AgreementBody, nil),
		Confirm: g.text(i18n.AgreementConfirm, nil),
	}
}

func attemptsLeft(limit, used int) map[string]any {
	return map[string]any{"Left": limit - used}
}

func errText(err error) map[string]any {
	return map[string]any{"Err": fmt.Sprint(err)}
}
