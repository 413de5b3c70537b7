package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/clock"
	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/dmitrijs2005/bankguard/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type touchStore struct {
	session.Store
	touched []time.Time
	err     error
}

func (s *touchStore) Touch(_ context.Context, at time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.touched = append(s.touched, at)
	return nil
}

type harness struct {
	clk     *clock.FakeClock
	store   *touchStore
	mon     *Monitor
	expired int
	hidden  int
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness() *harness {
	h := &harness{clk: clock.Fake(t0), store: &touchStore{}}
	runNow := func(f func()) { f() }
	h.mon = New(h.clk, h.store, runNow, logging.NewNopLogger(), Options{
		Timeout:         30 * time.Minute,
		HiddenGrace:     10 * time.Second,
		OnExpired:       func() { h.expired++ },
		OnHiddenExpired: func() { h.hidden++ },
	})
	return h
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind(" KeyPress ")
	require.NoError(t, err)
	assert.Equal(t, KeyPress, got)

	got, err = ParseKind("mousedown")
	require.NoError(t, err)
	assert.Equal(t, PointerDown, got)

	_, err = ParseKind("resize")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCountdown_FiresAtDeadline(t *testing.T) {
	h := newHarness()
	h.mon.Arm(t0)

	deadline, ok := h.mon.Deadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(30*time.Minute), deadline)

	h.clk.Advance(30*time.Minute - time.Second)
	assert.Equal(t, 0, h.expired)

	h.clk.Advance(time.Second)
	assert.Equal(t, 1, h.expired)
	assert.False(t, h.mon.Armed())
}

func TestCountdown_InteractionPushesDeadline(t *testing.T) {
	h := newHarness()
	h.mon.Arm(t0)

	h.clk.Advance(20 * time.Minute)
	require.NoError(t, h.mon.Interaction(context.Background(), Scroll))

	deadline, _ := h.mon.Deadline()
	assert.Equal(t, t0.Add(50*time.Minute), deadline)
	assert.Equal(t, []time.Time{t0.Add(20 * time.Minute)}, h.store.touched)

	h.clk.Advance(29 * time.Minute)
	assert.Equal(t, 0, h.expired)

	h.clk.Advance(time.Minute)
	assert.Equal(t, 1, h.expired)
	assert.Equal(t, 0, h.clk.Pending())
}

func TestCountdown_ManyInteractionsKeepOneTimer(t *testing.T) {
	h := newHarness()
	h.mon.Arm(t0)

	for i := 0; i < 50; i++ {
		h.clk.Advance(time.Second)
		require.NoError(t, h.mon.Interaction(context.Background(), PointerMove))
	}

	assert.Equal(t, 1, h.clk.Pending())
	deadline, _ := h.mon.Deadline()
	assert.Equal(t, h.clk.Now().Add(30*time.Minute), deadline)
}

func TestCountdown_StaleLastActiveFiresImmediately(t *testing.T) {
	h := newHarness()
	h.clk.Advance(45 * time.Minute)

	h.mon.Arm(t0)
	assert.Equal(t, 1, h.expired)
}

func TestCountdown_DisarmedIgnoresInteraction(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.mon.Interaction(context.Background(), KeyPress))
	assert.Empty(t, h.store.touched)
	assert.Equal(t, 0, h.clk.Pending())
	_, ok := h.mon.Deadline()
	assert.False(t, ok)

	h.mon.Arm(t0)
	h.mon.Disarm()
	h.clk.Advance(time.Hour)
	assert.Equal(t, 0, h.expired)
}

func TestInteraction_StoreFailureStillRestarts(t *testing.T) {
	h := newHarness()
	h.store.err = common.ErrStorage
	h.mon.Arm(t0)

	h.clk.Advance(10 * time.Minute)
	err := h.mon.Interaction(context.Background(), TouchStart)
	assert.ErrorIs(t, err, common.ErrStorage)

	deadline, _ := h.mon.Deadline()
	assert.Equal(t, t0.Add(40*time.Minute), deadline)
}

func TestInteraction_RejectsUnknownKind(t *testing.T) {
	h := newHarness()
	h.mon.Arm(t0)

	err := h.mon.Interaction(context.Background(), Kind("wheel"))
	assert.True(t, errors.Is(err, common.ErrValidation))
	deadline, _ := h.mon.Deadline()
	assert.Equal(t, t0.Add(30*time.Minute), deadline)
}

func TestHidden_ShortAbsenceDoesNotFire(t *testing.T) {
	h := newHarness()

	h.mon.Hidden()
	h.clk.Advance(9 * time.Second)
	h.mon.Visible()
	h.clk.Advance(time.Minute)

	assert.Equal(t, 0, h.hidden)
	assert.False(t, h.mon.IsHidden())
}

func TestHidden_LongAbsenceFires(t *testing.T) {
	h := newHarness()

	h.mon.Hidden()
	h.clk.Advance(10 * time.Second)

	assert.Equal(t, 1, h.hidden)
	assert.True(t, h.mon.IsHidden())
}

func TestHidden_RepeatedHideRestartsGrace(t *testing.T) {
	h := newHarness()

	h.mon.Hidden()
	h.clk.Advance(8 * time.Second)
	h.mon.Hidden()
	h.clk.Advance(8 * time.Second)
	assert.Equal(t, 0, h.hidden)

	h.clk.Advance(2 * time.Second)
	assert.Equal(t, 1, h.hidden)
}

func TestStaleCallbackDiscarded(t *testing.T) {
	clk := clock.Fake(t0)
	var queued []func()
	hidden := 0
	m := New(clk, &touchStore{}, func(f func()) { queued = append(queued, f) }, logging.NewNopLogger(), Options{
		HiddenGrace:     10 * time.Second,
		OnHiddenExpired: func() { hidden++ },
	})

	m.Hidden()
	clk.Advance(10 * time.Second)
	require.Len(t, queued, 1)

	// The tab came back before the queued callback ran.
	m.Visible()
	queued[0]()
	assert.Equal(t, 0, hidden)
}

func TestStop(t *testing.T) {
	h := newHarness()
	h.mon.Arm(t0)
	h.mon.Hidden()

	h.mon.Stop()
	h.clk.Advance(time.Hour)

	assert.Equal(t, 0, h.expired)
	assert.Equal(t, 0, h.hidden)
	assert.Equal(t, 0, h.clk.Pending())
}
