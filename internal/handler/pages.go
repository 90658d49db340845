package handler

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/hospitalbooking/internal/guard"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/storage"
)

// PageHandler отдаёт страницы консоли. Каждый запрос — как загрузка вкладки: свой
// session.Manager, разрешение сессии и решение гарда до отрисовки.
type PageHandler struct {
	store storage.Store
	table *guard.Table
}

func NewPageHandler(store storage.Store, table *guard.Table) *PageHandler {
	if table == nil {
		table = guard.DefaultTable()
	}
	return &PageHandler{store: store, table: table}
}

type pageData struct {
	Title         string
	View          string
	Path          string
	Authenticated bool
	Hospital      string
}

// Serve обслуживает любой GET-путь консоли; неизвестные пути уходят на лендинг.
func (h *PageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	m := openSession(r, h.store)
	out := h.table.Resolve(r.URL.Path, m.State())
	if out.Decision.IsRedirect() {
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, out.Location, http.StatusSeeOther)
		return
	}

	data := pageData{
		Title:         out.Route.Title,
		View:          out.Route.View,
		Path:          out.Path,
		Authenticated: m.State().Authenticated,
	}
	if data.Authenticated {
		data.Hospital = m.Profile(r.Context()).DisplayName()
	}

	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, data); err != nil {
		logger.Errorf("render page %s: %v", out.Path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

var shellTemplate = template.Must(template.New("shell").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body data-view="{{.View}}" data-path="{{.Path}}">
<header>
  <a href="/">Hospital Booking Agent</a>
  {{if .Authenticated}}<span id="hospital">{{.Hospital}}</span> <button id="logout">Sign out</button>{{end}}
</header>
<main id="view">
{{if eq .View "login"}}
  <form id="auth-form" action="/auth/login" method="post">
    <input name="email" type="email" required>
    <input name="password" type="password" required>
    <label><input name="remember" type="checkbox"> Remember me</label>
    <button type="submit">Sign in</button>
  </form>
{{else if eq .View "register"}}
  <form id="auth-form" action="/auth/register" method="post">
    <input name="hospitalName" required>
    <input name="email" type="email" required>
    <input name="phone">
    <input name="password" type="password" required>
    <input name="confirmPassword" type="password" required>
    <input name="address"><input name="city"><input name="state"><input name="zipCode"><input name="country">
    <input name="longitude" required><input name="latitude" required>
    <button type="submit">Register</button>
  </form>
{{else if eq .View "voice-flow"}}
  <ol id="steps"></ol>
  <button id="advance">Next</button> <button id="replay">Replay</button>
{{else if eq .View "landing"}}
  <a href="/login">Sign in</a> <a href="/register">Register</a> <a href="/voice-flow">Watch demo</a>
{{else}}
  <nav><a href="/dashboard">Dashboard</a> <a href="/analytics">Analytics</a></nav>
  <pre id="data"></pre>
{{end}}
  <p id="error" role="alert"></p>
</main>
<script>
(function () {
  var view = document.body.dataset.view;
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var sock = new WebSocket(proto + location.host + "/ws?path=" + encodeURIComponent(location.pathname));
  function send(msg) { if (sock.readyState === 1) sock.send(JSON.stringify(msg)); }
  sock.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (msg.type === "navigate") { location.replace(msg.payload.location); }
    if (msg.type === "voice_step") {
      var list = document.getElementById("steps");
      if (list) list.innerHTML = msg.payload.steps.map(function (s, i) {
        return "<li" + (i === msg.payload.index ? " aria-current=step" : "") + ">" + s.label + "</li>";
      }).join("");
    }
  };
  function follow(res) {
    return res.json().then(function (body) {
      if (body.redirect) { location.replace(body.redirect); return; }
      document.getElementById("error").textContent = body.error || "";
    });
  }
  var form = document.getElementById("auth-form");
  if (form) form.addEventListener("submit", function (e) {
    e.preventDefault();
    fetch(form.action, { method: "POST", body: new URLSearchParams(new FormData(form)) }).then(follow);
  });
  var logout = document.getElementById("logout");
  if (logout) logout.addEventListener("click", function () {
    fetch("/auth/logout", { method: "POST" }).then(follow);
  });
  var adv = document.getElementById("advance");
  if (adv) adv.addEventListener("click", function () { send({ type: "voice_advance" }); });
  var rep = document.getElementById("replay");
  if (rep) rep.addEventListener("click", function () { send({ type: "voice_replay" }); });
  if (view === "dashboard" || view === "analytics") {
    var src = view === "analytics" ? "/api/console/analytics" : "/api/console/reservations";
    fetch(src).then(function (res) {
      if (res.status === 401) { location.replace("/login"); return; }
      return res.json().then(function (body) {
        document.getElementById("data").textContent = JSON.stringify(body, null, 2);
      });
    });
  }
})();
</script>
</body>
</html>
`))
