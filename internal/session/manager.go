// Package session — состояние авторизации одной вкладки консоли.
//
// Manager — единственный источник правды для гарда маршрутов: он читает authToken из
// скоупа хранилища профиля, выполняет вход/выход и следит за изменениями, сделанными
// другими вкладками того же профиля. Потребители подписываются через Subscribe, а не опрашивают.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/model"
	"github.com/hospitalbooking/internal/storage"
)

// ErrEmptyToken — Login вызван без токена.
var ErrEmptyToken = errors.New("session: empty token")

// State — то, что видит гард. Loading истинно только до завершения первого Initialize.
type State struct {
	Authenticated bool `json:"authenticated"`
	Loading       bool `json:"loading"`
}

// Observer получает новое состояние после каждого его изменения.
type Observer func(State)

type Manager struct {
	local *storage.Scoped

	mu        sync.RWMutex
	token     string
	loading   bool
	// gen растёт при каждом apply: Initialize не перетирает токен, записанный во время его чтения.
	gen       uint64
	observers map[int]Observer
	nextID    int
}

func NewManager(store storage.Store, scope string) *Manager {
	return &Manager{
		local:     storage.NewScoped(store, scope),
		loading:   true,
		observers: make(map[int]Observer),
	}
}

func (m *Manager) Scope() string { return m.local.Scope() }

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	return State{Authenticated: m.token != "", Loading: m.loading}
}

// Token возвращает токен, известный этой вкладке (пусто — не авторизован).
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Initialize читает authToken один раз за жизнь Manager. Токен не проверяется —
// само наличие означает авторизацию. Ошибка чтения трактуется как «нет сессии».
// Повторный вызов ничего не меняет и возвращает текущее состояние.
func (m *Manager) Initialize(ctx context.Context) State {
	m.mu.RLock()
	resolved := !m.loading
	gen := m.gen
	m.mu.RUnlock()
	if resolved {
		return m.State()
	}

	token, err := m.readToken(ctx)
	if err != nil {
		logger.Errorf("session init scope=%s: %v (treated as signed out)", m.Scope(), err)
		token = ""
	}

	m.mu.Lock()
	if !m.loading {
		st := m.stateLocked()
		m.mu.Unlock()
		return st
	}
	if m.gen == gen {
		m.token = token
	}
	m.loading = false
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
	return st
}

// Login сохраняет токен, профиль больницы и флаг «запомнить меня», затем помечает вкладку
// авторизованной. Ошибки записи в хранилище возвращаются вызывающему как есть.
func (m *Manager) Login(ctx context.Context, token string, profile model.HospitalProfile, remember bool) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.local.Set(ctx, storage.KeyAuthToken, token); err != nil {
		return fmt.Errorf("session.Login: %w", err)
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("session.Login profile: %w", err)
	}
	if err := m.local.Set(ctx, storage.KeyHospitalProfile, string(raw)); err != nil {
		return fmt.Errorf("session.Login: %w", err)
	}
	if remember {
		err = m.local.Set(ctx, storage.KeyRememberLogin, "true")
	} else {
		err = m.local.Remove(ctx, storage.KeyRememberLogin)
	}
	if err != nil {
		return fmt.Errorf("session.Login: %w", err)
	}
	m.apply(token)
	return nil
}

// Logout удаляет authToken, hospitalProfile и rememberLogin. Идемпотентен.
func (m *Manager) Logout(ctx context.Context) error {
	for _, key := range []string{storage.KeyAuthToken, storage.KeyHospitalProfile, storage.KeyRememberLogin} {
		if err := m.local.Remove(ctx, key); err != nil {
			return fmt.Errorf("session.Logout: %w", err)
		}
	}
	m.apply("")
	return nil
}

// Refresh заново выводит состояние из хранилища. Ошибка чтения — как при Initialize: «нет сессии».
func (m *Manager) Refresh(ctx context.Context) State {
	token, err := m.readToken(ctx)
	if err != nil {
		logger.Errorf("session refresh scope=%s: %v (treated as signed out)", m.Scope(), err)
		token = ""
	}
	m.apply(token)
	return m.State()
}

// Watch подписывается на изменения скоупа и обрабатывает их (Listen + Follow).
// Блокирует до отмены ctx или закрытия хранилища.
func (m *Manager) Watch(ctx context.Context) error {
	changes, err := m.Listen(ctx)
	if err != nil {
		return err
	}
	m.Follow(ctx, changes)
	return nil
}

// Listen подписывается на изменения скоупа. Вызывается до Initialize: тогда выход в другой
// вкладке между чтением токена и началом Follow не теряется, а ждёт в канале.
func (m *Manager) Listen(ctx context.Context) (<-chan storage.Change, error) {
	changes, err := m.local.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("session.Listen: %w", err)
	}
	return changes, nil
}

// Follow пересчитывает состояние на каждое изменение authToken или полную очистку скоупа.
// Возвращается при отмене ctx или закрытии канала.
func (m *Manager) Follow(ctx context.Context, changes <-chan storage.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			if ch.Key != "" && ch.Key != storage.KeyAuthToken {
				continue
			}
			m.Refresh(ctx)
		}
	}
}

// Profile возвращает сохранённый профиль больницы; отсутствие или битый JSON — пустой профиль.
func (m *Manager) Profile(ctx context.Context) model.HospitalProfile {
	raw, ok, err := m.local.Get(ctx, storage.KeyHospitalProfile)
	if err != nil || !ok {
		return model.HospitalProfile{}
	}
	p, _ := model.ParseHospitalProfile(raw)
	return p
}

// Remembered сообщает, выставлен ли rememberLogin. TTL не поддерживается.
func (m *Manager) Remembered(ctx context.Context) bool {
	_, ok, err := m.local.Get(ctx, storage.KeyRememberLogin)
	return err == nil && ok
}

// Subscribe регистрирует наблюдателя; возвращённая функция снимает подписку.
func (m *Manager) Subscribe(fn Observer) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) readToken(ctx context.Context) (string, error) {
	token, ok, err := m.local.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// apply меняет токен и уведомляет наблюдателей, только если изменилась авторизованность.
// Loading здесь не трогается.
func (m *Manager) apply(token string) {
	m.mu.Lock()
	was := m.token != ""
	m.token = token
	m.gen++
	st := m.stateLocked()
	m.mu.Unlock()
	if was != st.Authenticated {
		m.notify(st)
	}
}

func (m *Manager) notify(st State) {
	m.mu.RLock()
	list := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		list = append(list, fn)
	}
	m.mu.RUnlock()
	for _, fn := range list {
		fn(st)
	}
}
