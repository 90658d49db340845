package guard

import (
	"sync"

	"github.com/hospitalbooking/internal/session"
)

// StateSource — то, что Watcher требует от session.Manager.
type StateSource interface {
	State() session.State
	Subscribe(fn session.Observer) func()
}

// Watcher держит текущий путь вкладки и пересчитывает решение гарда на каждое
// изменение сессии. После редиректа текущим путём становится Location.
type Watcher struct {
	table    *Table
	src      StateSource
	onChange func(Outcome)

	mu     sync.Mutex
	path   string
	last   Outcome
	cancel func()
}

// NewWatcher сразу вычисляет решение для path и подписывается на src.
// onChange вызывается только при смене решения и никогда под внутренней блокировкой.
func NewWatcher(table *Table, src StateSource, path string, onChange func(Outcome)) *Watcher {
	w := &Watcher{table: table, src: src, onChange: onChange, path: normalize(path)}
	w.last = w.resolveLocked(src.State())
	w.cancel = src.Subscribe(w.handle)
	return w
}

// Current возвращает последнее вычисленное решение.
func (w *Watcher) Current() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Navigate — вкладка перешла на другой путь (клик пользователя).
func (w *Watcher) Navigate(path string) Outcome {
	w.mu.Lock()
	w.path = normalize(path)
	out := w.resolveLocked(w.src.State())
	w.last = out
	w.mu.Unlock()
	return out
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Watcher) handle(st session.State) {
	w.mu.Lock()
	out := w.resolveLocked(st)
	changed := out.Decision != w.last.Decision || out.Path != w.last.Path
	w.last = out
	w.mu.Unlock()
	if changed && w.onChange != nil {
		w.onChange(out)
	}
}

// resolveLocked вызывается под w.mu.
func (w *Watcher) resolveLocked(st session.State) Outcome {
	out := w.table.Resolve(w.path, st)
	if out.Decision.IsRedirect() {
		w.path = normalize(out.Location)
	}
	return out
}
