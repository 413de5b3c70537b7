// Package monitor tracks user activity and page visibility for one guard.
//
// It owns exactly two timers: the inactivity countdown and the hidden-tab
// grace timer. Starting either one always cancels its predecessor, and each
// callback carries a generation number so that a callback which was already
// queued when its timer got replaced is discarded.
//
// Monitor is not safe for concurrent use. Every method, and every callback
// it delivers through the post function, runs on the owning guard's event
// loop.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/clock"
	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/dmitrijs2005/bankguard/internal/session"
)

// Options configure a Monitor.
type Options struct {
	Timeout     time.Duration
	HiddenGrace time.Duration

	// OnExpired runs when the countdown reaches its deadline.
	OnExpired func()
	// OnHiddenExpired runs when the grace period ends and the tab is still
	// hidden.
	OnHiddenExpired func()
}

type Monitor struct {
	clock clock.Clock
	store session.Store
	post  func(func())
	log   logging.Logger
	opts  Options

	lastActive time.Time
	armed      bool
	countdown  *clock.Timer
	countGen   uint64

	hidden   bool
	grace    *clock.Timer
	graceGen uint64
}

// New returns a disarmed, visible monitor. post must schedule f on the
// owner's event loop.
func New(clk clock.Clock, store session.Store, post func(func()), log logging.Logger, opts Options) *Monitor {
	if opts.Timeout <= 0 {
		opts.Timeout = common.InactivityTimeout
	}
	if opts.HiddenGrace <= 0 {
		opts.HiddenGrace = common.HiddenGracePeriod
	}
	return &Monitor{
		clock: clk,
		store: store,
		post:  post,
		log:   log.With("component", "monitor"),
		opts:  opts,
	}
}

// Arm starts inactivity enforcement with the countdown measured from
// lastActive. A deadline already in the past fires right away.
func (m *Monitor) Arm(lastActive time.Time) {
	m.armed = true
	m.lastActive = lastActive
	m.restartCountdown()
}

// Disarm stops inactivity enforcement.
func (m *Monitor) Disarm() {
	m.armed = false
	m.countGen++
	m.countdown.Stop()
	m.countdown = nil
}

// Armed reports whether the countdown is running.
func (m *Monitor) Armed() bool { return m.armed }

// Deadline is lastActive plus the timeout; ok is false while disarmed.
func (m *Monitor) Deadline() (time.Time, bool) {
	if !m.armed {
		return time.Time{}, false
	}
	return m.lastActive.Add(m.opts.Timeout), true
}

// LastActive returns the last recorded activity time.
func (m *Monitor) LastActive() time.Time { return m.lastActive }

// Interaction records activity of the given kind. While armed the time is
// persisted and the countdown restarts. The countdown restarts even if the
// store write fails.
func (m *Monitor) Interaction(ctx context.Context, kind Kind) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}

	now := m.clock.Now()
	m.lastActive = now
	if !m.armed {
		return nil
	}

	m.restartCountdown()

	if err := m.store.Touch(ctx, now); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (m *Monitor) restartCountdown() {
	m.countdown.Stop()
	m.countGen++
	gen := m.countGen

	d := m.lastActive.Add(m.opts.Timeout).Sub(m.clock.Now())
	m.countdown = m.clock.AfterFunc(d, func() {
		m.post(func() {
			if gen != m.countGen || !m.armed {
				return
			}
			m.armed = false
			m.countdown = nil
			if m.opts.OnExpired != nil {
				m.opts.OnExpired()
			}
		})
	})
}

// Hidden marks the tab hidden and starts the grace timer.
func (m *Monitor) Hidden() {
	m.hidden = true
	m.grace.Stop()
	m.graceGen++
	gen := m.graceGen

	m.grace = m.clock.AfterFunc(m.opts.HiddenGrace, func() {
		m.post(func() {
			if gen != m.graceGen || !m.hidden {
				return
			}
			m.grace = nil
			if m.opts.OnHiddenExpired != nil {
				m.opts.OnHiddenExpired()
			}
		})
	})
}

// Visible marks the tab visible and cancels the grace timer.
func (m *Monitor) Visible() {
	m.hidden = false
	m.graceGen++
	m.grace.Stop()
	m.grace = nil
}

// IsHidden reports the last visibility change.
func (m *Monitor) IsHidden() bool { return m.hidden }

// Stop cancels both timers.
func (m *Monitor) Stop() {
	m.Disarm()
	m.graceGen++
	m.grace.Stop()
	m.grace = nil
}
