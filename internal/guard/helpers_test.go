package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/clock"
	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/i18n"
	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/dmitrijs2005/bankguard/internal/nav"
	"github.com/dmitrijs2005/bankguard/internal/poller"
	"github.com/dmitrijs2005/bankguard/internal/remote"
	"github.com/dmitrijs2005/bankguard/internal/session"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const root = "https://bank.example"

// memStore is a shared in-memory session store; two guards given the same
// memStore behave like two tabs.
type memStore struct {
	mu       sync.Mutex
	rec      session.Record
	extra    map[string]string
	touches  int
	loadErr  error
	saveErr  error
	wipeErr  error
	clearErr error
}

func newMemStore(rec session.Record) *memStore {
	return &memStore{rec: rec, extra: map[string]string{"cached_profile": "{}"}}
}

func copyRecord(r session.Record) session.Record {
	out := r
	if r.UserID != nil {
		id := *r.UserID
		out.UserID = &id
	}
	if r.LastActiveAt != nil {
		at := *r.LastActiveAt
		out.LastActiveAt = &at
	}
	return out
}

func (s *memStore) Load(context.Context) (session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return session.Record{}, s.loadErr
	}
	return copyRecord(s.rec), nil
}

func (s *memStore) Save(_ context.Context, r session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.rec = copyRecord(r)
	return nil
}

func (s *memStore) Touch(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
	s.rec.LastActiveAt = &at
	return nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.rec = session.Record{}
	return nil
}

func (s *memStore) Wipe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wipeErr != nil {
		return s.wipeErr
	}
	s.rec = session.Record{}
	s.extra = map[string]string{}
	return nil
}

func (s *memStore) record() session.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecord(s.rec)
}

func (s *memStore) touchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touches
}

func (s *memStore) set(f func(*memStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

// fakeBackend stands in for both repositories. When gate is set, reads and
// writes block until it is closed.
type fakeBackend struct {
	mu         sync.Mutex
	accounts   map[string]remote.AccountStatus
	getErr     error
	setErr     error
	agreeErr   error
	gate       chan struct{}
	gets       int
	setActive  []bool
	agreements int
}

func newBackend() *fakeBackend {
	return &fakeBackend{accounts: map[string]remote.AccountStatus{
		"u-1": {UUID: "u-1", Active: remote.Active(true), PIN: "4821"},
	}}
}

func (b *fakeBackend) wait(ctx context.Context) error {
	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBackend) GetAccountStatus(ctx context.Context, uuid string) (remote.AccountStatus, error) {
	b.mu.Lock()
	b.gets++
	b.mu.Unlock()

	if err := b.wait(ctx); err != nil {
		return remote.AccountStatus{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return remote.AccountStatus{}, b.getErr
	}
	a, ok := b.accounts[uuid]
	if !ok {
		return remote.AccountStatus{}, common.ErrorNotFound
	}
	return a, nil
}

func (b *fakeBackend) SetActive(ctx context.Context, uuid string, active bool) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setActive = append(b.setActive, active)
	if b.setErr != nil {
		return b.setErr
	}
	a := b.accounts[uuid]
	a.Active = remote.Active(active)
	b.accounts[uuid] = a
	return nil
}

func (b *fakeBackend) SetAgreement(ctx context.Context, accepted bool) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agreements++
	return b.agreeErr
}

func (b *fakeBackend) set(f func(*fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(b)
}

func (b *fakeBackend) counts() (gets int, writes []bool, agreements int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets, append([]bool(nil), b.setActive...), b.agreements
}

type recordingUI struct {
	mu          sync.Mutex
	redirects   []string
	reloads     int
	prompts     []Prompt
	dismissed   []PromptKind
	validations []string
	footer      [2]string
}

func (u *recordingUI) Redirect(location string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.redirects = append(u.redirects, location)
}

func (u *recordingUI) Reload() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reloads++
}

func (u *recordingUI) ShowPrompt(p Prompt) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prompts = append(u.prompts, p)
}

func (u *recordingUI) DismissPrompt(kind PromptKind) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dismissed = append(u.dismissed, kind)
}

func (u *recordingUI) ShowValidation(_ PromptKind, msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.validations = append(u.validations, msg)
}

func (u *recordingUI) ShowFooter(email, address string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.footer = [2]string{email, address}
}

func (u *recordingUI) redirectList() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.redirects...)
}

func (u *recordingUI) promptKinds() []PromptKind {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]PromptKind, 0, len(u.prompts))
	for _, p := range u.prompts {
		out = append(out, p.Kind)
	}
	return out
}

func (u *recordingUI) lastValidation() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.validations) == 0 {
		return ""
	}
	return u.validations[len(u.validations)-1]
}

func (u *recordingUI) dismissedKinds() []PromptKind {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]PromptKind(nil), u.dismissed...)
}

type trackerSpy struct {
	mu       sync.Mutex
	tracked  []string
	refreshs int
}

func (s *trackerSpy) Track(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = append(s.tracked, uuid)
}

func (s *trackerSpy) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshs++
}

func (s *trackerSpy) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tracked) == 0 {
		return ""
	}
	return s.tracked[len(s.tracked)-1]
}

type harness struct {
	t       *testing.T
	clk     *clock.FakeClock
	store   *memStore
	backend *fakeBackend
	ui      *recordingUI
	tracker *trackerSpy
	routes  nav.Routes
	g       *Guard
	stop    func()
}

type option func(*Config)

func onAdmin(c *Config) {
	c.Surface = AdminSurface
	c.Routes = nav.AdminRoutes(root)
	c.Location = c.Routes.Resolve(nav.Landing)
}

func at(location string) option {
	return func(c *Config) { c.Location = location }
}

func newHarness(t *testing.T, rec session.Record, opts ...option) *harness {
	t.Helper()
	clk := clock.Fake(t0)
	return newTab(t, clk, newMemStore(rec), newBackend(), opts...)
}

// newTab builds a guard over shared clock, store and backend.
func newTab(t *testing.T, clk *clock.FakeClock, store *memStore, backend *fakeBackend, opts ...option) *harness {
	t.Helper()

	msgs, err := i18n.New("en")
	require.NoError(t, err)

	routes := nav.UserRoutes(root)
	cfg := Config{
		Surface:   UserSurface,
		Routes:    routes,
		Location:  routes.Resolve(nav.Landing),
		IOTimeout: time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}

	h := &harness{
		t:       t,
		clk:     clk,
		store:   store,
		backend: backend,
		ui:      &recordingUI{},
		tracker: &trackerSpy{},
		routes:  cfg.Routes,
	}
	h.g = New(cfg, Deps{
		Clock:    clk,
		Store:    store,
		Accounts: backend,
		Admin:    backend,
		Tracker:  h.tracker,
		UI:       h.ui,
		Messages: msgs,
		Log:      logging.NewNopLogger(),
	})
	return h
}

func (h *harness) start() *harness {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.g.Run(ctx) }()
	require.Eventually(h.t, h.g.running.Load, time.Second, time.Millisecond)

	var once sync.Once
	h.stop = func() {
		once.Do(func() {
			cancel()
			require.NoError(h.t, <-done)
		})
	}
	h.t.Cleanup(h.stop)
	return h
}

func (h *harness) apply(st poller.Status) {
	h.g.ApplyStatus(st)
}

func (h *harness) admin(visible, agreed bool) {
	h.apply(poller.Status{Admin: &remote.AdminStatus{
		SiteVisible:       visible,
		AgreementAccepted: agreed,
		ContactEmail:      "help@bank.example",
		ContactAddress:    "1 Main St",
	}})
}

func (h *harness) account(active bool) {
	h.apply(poller.Status{Account: &remote.AccountStatus{UUID: "u-1", Active: remote.Active(active)}})
}

func (h *harness) url(t nav.Target) string {
	return h.routes.Resolve(t)
}

func loggedIn(id string, lastActive time.Time) session.Record {
	return session.LoggedInAs(id, lastActive)
}

func lockedRecord() session.Record {
	r := loggedIn("u-1", t0)
	r.LockedLocally = true
	return r
}
