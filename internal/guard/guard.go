// Package guard решает для каждой навигации: показать страницу или перенаправить,
// исходя из session.State.
package guard

import (
	"strings"

	"github.com/hospitalbooking/internal/session"
)

type Variant int

const (
	// Open — страница доступна при любом состоянии сессии (демо voice-flow).
	Open Variant = iota
	// Protected — нужна сессия, иначе на /login.
	Protected
	// PublicOnly — только для неавторизованных, иначе на /dashboard.
	PublicOnly
)

func (v Variant) String() string {
	switch v {
	case Protected:
		return "protected"
	case PublicOnly:
		return "public_only"
	default:
		return "open"
	}
}

type Decision int

const (
	Resolving Decision = iota
	Allow
	RedirectToLogin
	RedirectToDashboard
	// RedirectToLanding — маршрут не найден, без учёта сессии.
	RedirectToLanding
)

func (d Decision) String() string {
	switch d {
	case Resolving:
		return "resolving"
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToDashboard:
		return "redirect_to_dashboard"
	case RedirectToLanding:
		return "redirect_to_landing"
	default:
		return "unknown"
	}
}

// IsRedirect — терминальные решения, которые заменяют текущую запись истории.
func (d Decision) IsRedirect() bool {
	return d == RedirectToLogin || d == RedirectToDashboard || d == RedirectToLanding
}

const (
	PathLanding   = "/"
	PathLogin     = "/login"
	PathRegister  = "/register"
	PathDashboard = "/dashboard"
	PathAnalytics = "/analytics"
	PathVoiceFlow = "/voice-flow"
)

// Evaluate — предикат гарда. Пока идёт загрузка сессии, ответ всегда Resolving.
func Evaluate(v Variant, st session.State) Decision {
	if st.Loading {
		return Resolving
	}
	switch v {
	case Protected:
		if st.Authenticated {
			return Allow
		}
		return RedirectToLogin
	case PublicOnly:
		if st.Authenticated {
			return RedirectToDashboard
		}
		return Allow
	default:
		return Allow
	}
}

// Route — страница консоли и вариант гарда для неё.
type Route struct {
	Path    string
	View    string
	Title   string
	Variant Variant
}

// Outcome — результат разрешения пути. Location заполнен только для редиректов;
// Replace всегда true для редиректов: кнопка «назад» не должна возвращать на закрытую страницу.
type Outcome struct {
	Decision Decision `json:"decision"`
	Route    Route    `json:"-"`
	Path     string   `json:"path"`
	Location string   `json:"location,omitempty"`
	Replace  bool     `json:"replace,omitempty"`
}

type Table struct {
	routes   map[string]Route
	fallback string
}

func NewTable(fallback string, routes ...Route) *Table {
	m := make(map[string]Route, len(routes))
	for _, r := range routes {
		m[r.Path] = r
	}
	return &Table{routes: m, fallback: fallback}
}

// DefaultTable — маршруты консоли; всё остальное уходит на лендинг.
func DefaultTable() *Table {
	return NewTable(PathLanding,
		Route{Path: PathLanding, View: "landing", Title: "Hospital Booking Agent", Variant: PublicOnly},
		Route{Path: PathLogin, View: "login", Title: "Sign in", Variant: PublicOnly},
		Route{Path: PathRegister, View: "register", Title: "Register hospital", Variant: PublicOnly},
		Route{Path: PathVoiceFlow, View: "voice-flow", Title: "Voice flow demo", Variant: Open},
		Route{Path: PathDashboard, View: "dashboard", Title: "Dashboard", Variant: Protected},
		Route{Path: PathAnalytics, View: "analytics", Title: "Analytics", Variant: Protected},
	)
}

// Lookup нормализует путь (без завершающего слэша) и ищет маршрут.
func (t *Table) Lookup(path string) (Route, bool) {
	r, ok := t.routes[normalize(path)]
	return r, ok
}

func (t *Table) Resolve(path string, st session.State) Outcome {
	p := normalize(path)
	r, ok := t.routes[p]
	if !ok {
		return Outcome{Decision: RedirectToLanding, Path: p, Location: t.fallback, Replace: true}
	}
	d := Evaluate(r.Variant, st)
	out := Outcome{Decision: d, Route: r, Path: p}
	switch d {
	case RedirectToLogin:
		out.Location, out.Replace = PathLogin, true
	case RedirectToDashboard:
		out.Location, out.Replace = PathDashboard, true
	}
	return out
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
