package guard

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalbooking/internal/model"
	"github.com/hospitalbooking/internal/session"
	"github.com/hospitalbooking/internal/storage/memory"
)

type outcomes struct {
	mu   sync.Mutex
	list []Outcome
}

func (o *outcomes) add(out Outcome) {
	o.mu.Lock()
	o.list = append(o.list, out)
	o.mu.Unlock()
}

func (o *outcomes) all() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.list...)
}

func newSession(t *testing.T) *session.Manager {
	t.Helper()
	m := session.NewManager(memory.New(), "profile-1")
	m.Initialize(context.Background())
	return m
}

func TestWatcher_LogoutRedirectsProtectedPage(t *testing.T) {
	ctx := context.Background()
	m := newSession(t)
	require.NoError(t, m.Login(ctx, "tok", model.HospitalProfile{}, false))

	got := &outcomes{}
	w := NewWatcher(DefaultTable(), m, PathDashboard, got.add)
	defer w.Stop()
	assert.Equal(t, Allow, w.Current().Decision)

	require.NoError(t, m.Logout(ctx))
	require.Len(t, got.all(), 1)
	out := got.all()[0]
	assert.Equal(t, RedirectToLogin, out.Decision)
	assert.Equal(t, PathLogin, out.Location)
	assert.True(t, out.Replace)

	// После редиректа вкладка на /login; повторный вход уводит на дашборд.
	require.NoError(t, m.Login(ctx, "tok2", model.HospitalProfile{}, false))
	require.Len(t, got.all(), 2)
	assert.Equal(t, RedirectToDashboard, got.all()[1].Decision)
	assert.Equal(t, PathDashboard, w.Current().Location)
}

func TestWatcher_LoginOnPublicPage(t *testing.T) {
	ctx := context.Background()
	m := newSession(t)
	got := &outcomes{}
	w := NewWatcher(DefaultTable(), m, PathLogin, got.add)
	defer w.Stop()
	assert.Equal(t, Allow, w.Current().Decision)

	require.NoError(t, m.Login(ctx, "tok", model.HospitalProfile{}, false))
	require.Len(t, got.all(), 1)
	assert.Equal(t, RedirectToDashboard, got.all()[0].Decision)
}

func TestWatcher_OpenPageIgnoresSession(t *testing.T) {
	ctx := context.Background()
	m := newSession(t)
	got := &outcomes{}
	w := NewWatcher(DefaultTable(), m, PathVoiceFlow, got.add)
	defer w.Stop()

	require.NoError(t, m.Login(ctx, "tok", model.HospitalProfile{}, false))
	require.NoError(t, m.Logout(ctx))
	assert.Empty(t, got.all())
	assert.Equal(t, Allow, w.Current().Decision)
}

func TestWatcher_Navigate(t *testing.T) {
	m := newSession(t)
	w := NewWatcher(DefaultTable(), m, PathLanding, nil)
	defer w.Stop()

	out := w.Navigate(PathAnalytics)
	assert.Equal(t, RedirectToLogin, out.Decision)
	assert.Equal(t, PathLogin, out.Location)

	out = w.Navigate("/unknown")
	assert.Equal(t, RedirectToLanding, out.Decision)
}

func TestWatcher_Stop(t *testing.T) {
	ctx := context.Background()
	m := newSession(t)
	got := &outcomes{}
	w := NewWatcher(DefaultTable(), m, PathLogin, got.add)
	w.Stop()
	w.Stop()

	require.NoError(t, m.Login(ctx, "tok", model.HospitalProfile{}, false))
	assert.Empty(t, got.all())
}

func TestWatcher_ResolvesAfterLoading(t *testing.T) {
	m := session.NewManager(memory.New(), "profile-1")
	got := &outcomes{}
	w := NewWatcher(DefaultTable(), m, PathDashboard, got.add)
	defer w.Stop()
	assert.Equal(t, Resolving, w.Current().Decision)

	m.Initialize(context.Background())
	require.Len(t, got.all(), 1)
	assert.Equal(t, RedirectToLogin, got.all()[0].Decision)
}
