package storage

import (
	"context"
	"errors"
)

// Ключи, которыми пользуется сессия консоли.
const (
	KeyAuthToken       = "authToken"
	KeyHospitalProfile = "hospitalProfile"
	KeyRememberLogin   = "rememberLogin"
)

// ErrClosed возвращается операциями над закрытым хранилищем.
var ErrClosed = errors.New("storage: closed")

// Change — уведомление об изменении ключа в скоупе.
// Пустой Key означает, что скоуп очищен целиком (Clear).
type Change struct {
	Scope   string `json:"scope"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// Store — строковое key-value хранилище, разделённое на скоупы (один скоуп на профиль браузера).
// Реализации: memory.Client (-dev и тесты), redis.Client, devstore.Client (Postgres).
//
// Subscribe доставляет изменения любого ключа скоупа, в том числе сделанные самим подписчиком;
// фильтровать интересующие ключи должен потребитель. Канал закрывается при отмене ctx или Close.
type Store interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
	Remove(ctx context.Context, scope, key string) error
	Clear(ctx context.Context, scope string) error
	Subscribe(ctx context.Context, scope string) (<-chan Change, error)
	Close() error
}

// Scoped привязывает Store к одному скоупу — аналог origin-scoped localStorage.
type Scoped struct {
	store Store
	scope string
}

func NewScoped(store Store, scope string) *Scoped {
	return &Scoped{store: store, scope: scope}
}

func (s *Scoped) Scope() string { return s.scope }

func (s *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.scope, key)
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.scope, key, value)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, s.scope, key)
}

func (s *Scoped) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.scope)
}

func (s *Scoped) Subscribe(ctx context.Context) (<-chan Change, error) {
	return s.store.Subscribe(ctx, s.scope)
}
