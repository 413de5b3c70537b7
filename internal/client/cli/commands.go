package cli

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/guard"
	"github.com/dmitrijs2005/bankguard/internal/monitor"
)

// Tap reports one user interaction. An empty kind means pointerdown.
func (a *App) Tap(ctx context.Context, kind string) error {
	k := monitor.PointerDown
	if kind != "" {
		var err error
		if k, err = monitor.ParseKind(kind); err != nil {
			return err
		}
	}
	return a.guard.Interaction(ctx, k)
}

func (a *App) Hide(ctx context.Context) error { return a.guard.Hidden(ctx) }
func (a *App) Show(ctx context.Context) error { return a.guard.Visible(ctx) }

// PIN submits pin, reading it from the terminal without echo when empty.
func (a *App) PIN(ctx context.Context, pin string) error {
	if a.guard.State() != guard.Locked {
		return common.ErrNotAllowed
	}
	if pin == "" {
		var err error
		if pin, err = GetPIN(a.out); err != nil {
			return err
		}
	}

	err := a.guard.SubmitPIN(ctx, pin)
	switch {
	case err == nil:
		a.term.Println("Session unlocked")
	case errors.Is(err, common.ErrValidation):
		// The guard already showed the attempts left.
		return nil
	}
	return err
}

func (a *App) Agree(ctx context.Context) error {
	if err := a.guard.AcceptAgreement(ctx); err != nil {
		return err
	}
	a.term.Println("Agreement accepted")
	return nil
}

func (a *App) Ack(ctx context.Context) error { return a.guard.AcknowledgeRestriction(ctx) }

// Login stands in for the site's login page. On the user surface who is an
// account uuid or email and the account must exist and be active; on the
// admin surface who is the administrator's email.
func (a *App) Login(ctx context.Context, who string) error {
	id, err := a.resolveLogin(ctx, strings.TrimSpace(who))
	if err != nil {
		a.log.Warn(ctx, "login refused", "who", who, "err", err)
		return err
	}
	if err := a.guard.Login(ctx, id); err != nil {
		return err
	}
	a.log.Info(ctx, "logged in", "user", id)
	return nil
}

func (a *App) resolveLogin(ctx context.Context, who string) (string, error) {
	if a.surface == guard.AdminSurface {
		addr, err := mail.ParseAddress(who)
		if err != nil {
			return "", fmt.Errorf("login: %w: %v", common.ErrValidation, err)
		}
		return addr.Address, nil
	}

	if id, err := uuid.Parse(who); err == nil {
		st, err := a.accounts.GetAccountStatus(ctx, id.String())
		if err != nil {
			return "", fmt.Errorf("login: %w", err)
		}
		if st.Restricted() {
			return "", fmt.Errorf("login: %w", common.ErrRestricted)
		}
		return st.UUID, nil
	}

	if _, err := mail.ParseAddress(who); err != nil {
		return "", fmt.Errorf("login: %w: not a uuid or email: %q", common.ErrValidation, who)
	}
	acc, err := a.accounts.FindByEmail(ctx, who)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if !acc.Active {
		return "", fmt.Errorf("login: %w", common.ErrRestricted)
	}
	return acc.UUID, nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.guard.Logout(ctx); err != nil {
		return err
	}
	a.term.Println("Logged out")
	return nil
}

// Status prints the guard snapshot.
func (a *App) Status(ctx context.Context) error {
	s, err := a.guard.Snapshot(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "state:    %s\n", s.State)
	fmt.Fprintf(a.out, "surface:  %s\n", s.Surface)
	if s.UserID != "" {
		fmt.Fprintf(a.out, "user:     %s\n", s.UserID)
	}
	fmt.Fprintf(a.out, "page:     %s\n", s.Location)
	if !s.Deadline.IsZero() {
		fmt.Fprintf(a.out, "expires:  %s\n", s.Deadline.Local().Format("15:04:05"))
	}
	if s.State == guard.Locked {
		fmt.Fprintf(a.out, "attempts: %d\n", s.Attempts)
	}
	if s.Hidden {
		fmt.Fprintln(a.out, "hidden:   yes")
	}
	if prompts := a.term.OpenPrompts(); len(prompts) > 0 {
		names := make([]string, len(prompts))
		for i, p := range prompts {
			names[i] = p.String()
		}
		fmt.Fprintf(a.out, "prompts:  %s\n", strings.Join(names, ", "))
	}
	return nil
}
