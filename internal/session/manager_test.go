package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalbooking/internal/model"
	"github.com/hospitalbooking/internal/storage"
	"github.com/hospitalbooking/internal/storage/memory"
)

const testScope = "profile-1"

var errDisk = errors.New("quota exceeded")

// brokenStore отказывает в чтении и/или записи поверх рабочего хранилища.
type brokenStore struct {
	storage.Store
	failGet bool
	failSet bool
}

func (b *brokenStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	if b.failGet {
		return "", false, errDisk
	}
	return b.Store.Get(ctx, scope, key)
}

func (b *brokenStore) Set(ctx context.Context, scope, key, value string) error {
	if b.failSet {
		return errDisk
	}
	return b.Store.Set(ctx, scope, key, value)
}

// recorder собирает уведомления наблюдателя.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) observe(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

var testProfile = model.HospitalProfile{HospitalID: "h-1", HospitalName: "City General", Email: "desk@city.test"}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(memory.New(), testScope)
	assert.Equal(t, State{Authenticated: false, Loading: true}, m.State())
	assert.Empty(t, m.Token())
	assert.Equal(t, testScope, m.Scope())
}

func TestManager_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		m := NewManager(memory.New(), testScope)
		assert.Equal(t, State{Authenticated: false, Loading: false}, m.Initialize(ctx))
	})

	t.Run("token present", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, testScope, storage.KeyAuthToken, "abc"))
		m := NewManager(store, testScope)
		assert.Equal(t, State{Authenticated: true, Loading: false}, m.Initialize(ctx))
		assert.Equal(t, "abc", m.Token())
	})

	t.Run("token of another scope is not visible", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, "other", storage.KeyAuthToken, "abc"))
		m := NewManager(store, testScope)
		assert.False(t, m.Initialize(ctx).Authenticated)
	})

	t.Run("read error means signed out", func(t *testing.T) {
		m := NewManager(&brokenStore{Store: memory.New(), failGet: true}, testScope)
		assert.Equal(t, State{Authenticated: false, Loading: false}, m.Initialize(ctx))
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		store := memory.New()
		m := NewManager(store, testScope)
		rec := &recorder{}
		m.Subscribe(rec.observe)

		first := m.Initialize(ctx)
		require.NoError(t, store.Set(ctx, testScope, storage.KeyAuthToken, "late"))
		second := m.Initialize(ctx)

		assert.Equal(t, first, second)
		assert.False(t, second.Authenticated)
		assert.Len(t, rec.all(), 1)
	})
}

func TestManager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("persists token profile and remember flag", func(t *testing.T) {
		store := memory.New()
		m := NewManager(store, testScope)
		m.Initialize(ctx)

		require.NoError(t, m.Login(ctx, "tok", testProfile, true))
		assert.Equal(t, State{Authenticated: true, Loading: false}, m.State())
		assert.Equal(t, "tok", m.Token())

		v, ok, err := store.Get(ctx, testScope, storage.KeyAuthToken)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "tok", v)
		assert.Equal(t, testProfile, m.Profile(ctx))
		assert.True(t, m.Remembered(ctx))
	})

	t.Run("without remember clears previous flag", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, testScope, storage.KeyRememberLogin, "true"))
		m := NewManager(store, testScope)
		m.Initialize(ctx)

		require.NoError(t, m.Login(ctx, "tok", testProfile, false))
		assert.False(t, m.Remembered(ctx))
	})

	t.Run("empty token", func(t *testing.T) {
		m := NewManager(memory.New(), testScope)
		m.Initialize(ctx)
		assert.ErrorIs(t, m.Login(ctx, "", testProfile, false), ErrEmptyToken)
		assert.False(t, m.State().Authenticated)
	})

	t.Run("write error propagates and state is unchanged", func(t *testing.T) {
		m := NewManager(&brokenStore{Store: memory.New(), failSet: true}, testScope)
		m.Initialize(ctx)
		err := m.Login(ctx, "tok", testProfile, false)
		assert.ErrorIs(t, err, errDisk)
		assert.False(t, m.State().Authenticated)
	})

	t.Run("login twice keeps last token", func(t *testing.T) {
		m := NewManager(memory.New(), testScope)
		m.Initialize(ctx)
		require.NoError(t, m.Login(ctx, "one", testProfile, false))
		require.NoError(t, m.Login(ctx, "two", testProfile, false))
		assert.Equal(t, "two", m.Token())
	})
}

func TestManager_Logout(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, testScope)
	m.Initialize(ctx)
	require.NoError(t, m.Login(ctx, "tok", testProfile, true))

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, State{Authenticated: false, Loading: false}, m.State())
	for _, key := range []string{storage.KeyAuthToken, storage.KeyHospitalProfile, storage.KeyRememberLogin} {
		_, ok, err := store.Get(ctx, testScope, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	require.NoError(t, m.Logout(ctx), "logout is idempotent")
	assert.False(t, m.State().Authenticated)
}

func TestManager_Observers(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.New(), testScope)
	rec := &recorder{}
	cancel := m.Subscribe(rec.observe)

	m.Initialize(ctx)
	require.NoError(t, m.Login(ctx, "one", testProfile, false))
	require.NoError(t, m.Login(ctx, "two", testProfile, false))
	require.NoError(t, m.Logout(ctx))
	require.NoError(t, m.Logout(ctx))

	assert.Equal(t, []State{
		{Authenticated: false, Loading: false},
		{Authenticated: true, Loading: false},
		{Authenticated: false, Loading: false},
	}, rec.all())

	cancel()
	require.NoError(t, m.Login(ctx, "three", testProfile, false))
	assert.Len(t, rec.all(), 3)
}

func TestManager_Profile(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, testScope)

	assert.Equal(t, model.UnknownHospitalName, m.Profile(ctx).DisplayName())

	require.NoError(t, store.Set(ctx, testScope, storage.KeyHospitalProfile, "{not json"))
	assert.Equal(t, model.HospitalProfile{}, m.Profile(ctx))
	assert.Equal(t, model.UnknownHospitalName, m.Profile(ctx).DisplayName())
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, testScope)
	m.Initialize(ctx)

	require.NoError(t, store.Set(ctx, testScope, storage.KeyAuthToken, "external"))
	assert.True(t, m.Refresh(ctx).Authenticated)
	assert.Equal(t, "external", m.Token())
}

// Две вкладки одного профиля: вход и выход в одной видны в другой без перезагрузки.
func TestManager_Watch_CrossTab(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := memory.New()

	tabA := NewManager(store, testScope)
	tabB := NewManager(store, testScope)
	tabA.Initialize(ctx)
	tabB.Initialize(ctx)

	changed := make(chan State, 8)
	tabB.Subscribe(func(st State) { changed <- st })

	watchErr := make(chan error, 1)
	go func() { watchErr <- tabB.Watch(ctx) }()
	// Watch подписывается асинхронно.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, tabA.Login(ctx, "tok", testProfile, false))
	select {
	case st := <-changed:
		assert.True(t, st.Authenticated)
	case <-time.After(time.Second):
		t.Fatal("tab B did not observe login")
	}
	assert.Equal(t, "tok", tabB.Token())

	require.NoError(t, tabA.Logout(ctx))
	select {
	case st := <-changed:
		assert.False(t, st.Authenticated)
	case <-time.After(time.Second):
		t.Fatal("tab B did not observe logout")
	}

	cancel()
	select {
	case err := <-watchErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestManager_Watch_IgnoresOtherKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := memory.New()
	m := NewManager(store, testScope)
	m.Initialize(ctx)

	rec := &recorder{}
	m.Subscribe(rec.observe)
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, store.Set(ctx, testScope, storage.KeyRememberLogin, "true"))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestManager_Watch_StoreClosed(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Close())
	m := NewManager(store, testScope)
	assert.ErrorIs(t, m.Watch(context.Background()), storage.ErrClosed)
}

// Выход в другой вкладке между Initialize и началом Follow не теряется: подписка уже есть.
func TestManager_ListenBeforeInitialize(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := memory.New()
	require.NoError(t, store.Set(ctx, testScope, storage.KeyAuthToken, "abc"))

	tab := NewManager(store, testScope)
	changes, err := tab.Listen(ctx)
	require.NoError(t, err)
	require.True(t, tab.Initialize(ctx).Authenticated)

	other := NewManager(store, testScope)
	other.Initialize(ctx)
	require.NoError(t, other.Logout(ctx))

	go tab.Follow(ctx, changes)
	require.Eventually(t, func() bool { return !tab.State().Authenticated }, time.Second, 5*time.Millisecond)
}

// gatedStore отдаёт результат первого чтения authToken только после release,
// имитируя медленный Get.
type gatedStore struct {
	storage.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	v, ok, err := g.Store.Get(ctx, scope, key)
	if key == storage.KeyAuthToken {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return v, ok, err
}

func TestManager_InitializeDoesNotOverwriteLogin(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(store, testScope)

	done := make(chan State, 1)
	go func() { done <- m.Initialize(ctx) }()
	<-store.entered

	require.NoError(t, m.Login(ctx, "fresh", testProfile, false))
	close(store.release)

	select {
	case st := <-done:
		assert.Equal(t, State{Authenticated: true, Loading: false}, st)
	case <-time.After(2 * time.Second):
		t.Fatal("Initialize did not return")
	}
	assert.Equal(t, "fresh", m.Token())
}
