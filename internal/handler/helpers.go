package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/hospitalbooking/internal/apiclient"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/middleware"
	"github.com/hospitalbooking/internal/session"
	"github.com/hospitalbooking/internal/storage"
)

const maxBodySize = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// redirectResponse — ответ форм входа/регистрации/выхода: куда перейти вкладке.
type redirectResponse struct {
	Redirect string `json:"redirect"`
	Replace  bool   `json:"replace,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody читает JSON или обычную HTML-форму в dst; для формы поля берутся по json-тегам.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		r.Body = body
		parse := r.ParseForm
		if ct == "multipart/form-data" {
			parse = func() error { return r.ParseMultipartForm(maxBodySize) }
		}
		if err := parse(); err != nil {
			return err
		}
		values := make(map[string]any, len(r.PostForm))
		for k := range r.PostForm {
			values[k] = r.PostForm.Get(k)
		}
		raw, err := json.Marshal(values)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dst)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// openSession создаёт менеджер сессии на время одного запроса и разрешает его состояние
// по скоупу профиля браузера.
func openSession(r *http.Request, store storage.Store) *session.Manager {
	m := session.NewManager(store, middleware.GetProfileID(r.Context()))
	m.Initialize(r.Context())
	return m
}

// apiErrorStatus переводит ошибку API в статус ответа консоли и сообщение для пользователя.
func apiErrorStatus(err error, fallback string) (int, string) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return http.StatusUnauthorized, apiErr.Message
		}
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status, apiErr.Message
		}
		return http.StatusBadGateway, apiErr.Message
	}
	return http.StatusBadGateway, fallback
}

// checkbox принимает true/false из JSON и "on"/"true"/"1" из HTML-формы.
type checkbox bool

func (c *checkbox) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*c = checkbox(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		*c = true
	default:
		*c = false
	}
	return nil
}

// looseString принимает и строку, и число: координаты приходят из формы строками, из JSON — числами.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = looseString(s)
		return nil
	}
	if string(data) == "null" {
		*l = ""
		return nil
	}
	*l = looseString(data)
	return nil
}
