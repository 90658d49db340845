package handler

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hospitalbooking/internal/analytics"
	"github.com/hospitalbooking/internal/apiclient"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/middleware"
	"github.com/hospitalbooking/internal/model"
	"github.com/hospitalbooking/internal/session"
	"github.com/hospitalbooking/internal/storage"
)

const analyticsFailed = "Failed to load analytics"

// DashboardHandler отдаёт данные дашборда из внешнего API. Запрос идёт с токеном
// сессии профиля; 401 от API завершает сессию через session.Manager.
type DashboardHandler struct {
	store storage.Store
	api   *apiclient.Client
}

func NewDashboardHandler(store storage.Store, api *apiclient.Client) *DashboardHandler {
	return &DashboardHandler{store: store, api: api}
}

// authorized возвращает менеджер сессии запроса или пишет 401.
func (h *DashboardHandler) authorized(w http.ResponseWriter, r *http.Request) (*session.Manager, bool) {
	m := openSession(r, h.store)
	if !m.State().Authenticated {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return m, true
}

func dateFilter(w http.ResponseWriter, r *http.Request) (apiclient.DateFilter, bool) {
	q := r.URL.Query()
	f, err := apiclient.ParseDateFilter(q.Get("dateFilter"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return apiclient.DateFilter{}, false
	}
	return f, true
}

func (h *DashboardHandler) Reservations(w http.ResponseWriter, r *http.Request) {
	m, ok := h.authorized(w, r)
	if !ok {
		return
	}
	f, ok := dateFilter(w, r)
	if !ok {
		return
	}
	list, err := h.api.Reservations(apiclient.WithSession(r.Context(), m), f)
	if err != nil {
		h.fail(w, r, err, "Unable to load reservations.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reservations": nonNil(list),
		"summary":      analytics.Summarize(list),
	})
}

func (h *DashboardHandler) CallLogs(w http.ResponseWriter, r *http.Request) {
	m, ok := h.authorized(w, r)
	if !ok {
		return
	}
	f, ok := dateFilter(w, r)
	if !ok {
		return
	}
	list, err := h.api.CallLogs(apiclient.WithSession(r.Context(), m), f)
	if err != nil {
		h.fail(w, r, err, "Unable to load call logs.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"callLogs": nonNil(list)})
}

func (h *DashboardHandler) Customers(w http.ResponseWriter, r *http.Request) {
	m, ok := h.authorized(w, r)
	if !ok {
		return
	}
	list, err := h.api.Customers(apiclient.WithSession(r.Context(), m))
	if err != nil {
		h.fail(w, r, err, "Unable to load customers.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": nonNil(list)})
}

// Settings — карточка больницы по hospitalId из сохранённого профиля.
func (h *DashboardHandler) Settings(w http.ResponseWriter, r *http.Request) {
	m, ok := h.authorized(w, r)
	if !ok {
		return
	}
	profile := m.Profile(r.Context())
	if profile.HospitalID == "" {
		writeError(w, http.StatusBadRequest, "Hospital profile is missing. Please log in again.")
		return
	}
	settings, err := h.api.Hospital(apiclient.WithSession(r.Context(), m), profile.HospitalID)
	if err != nil {
		h.fail(w, r, err, "Unable to load settings.")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Analytics загружает все бронирования, звонки и клиентов параллельно и считает сводку.
func (h *DashboardHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("dashboard.Analytics", time.Now())()
	m, ok := h.authorized(w, r)
	if !ok {
		return
	}
	var (
		reservations []model.Reservation
		calls        []model.CallLog
		customers    []model.Customer
	)
	g, ctx := errgroup.WithContext(apiclient.WithSession(r.Context(), m))
	g.Go(func() (err error) {
		reservations, err = h.api.Reservations(ctx, apiclient.AllTime)
		return err
	})
	g.Go(func() (err error) {
		calls, err = h.api.CallLogs(ctx, apiclient.AllTime)
		return err
	})
	g.Go(func() (err error) {
		customers, err = h.api.Customers(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		status, _ := apiErrorStatus(err, analyticsFailed)
		h.logFailure(r, err)
		writeError(w, status, analyticsMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, analytics.Build(reservations, calls, customers))
}

func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := apiErrorStatus(err, fallback)
	h.logFailure(r, err)
	writeError(w, status, msg)
}

// analyticsMessage — сообщение API, если оно пришло в ответе, иначе общий текст аналитики.
func analyticsMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && !apiErr.Generic && apiErr.Message != "" {
		return apiErr.Message
	}
	return analyticsFailed
}

func (h *DashboardHandler) logFailure(r *http.Request, err error) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		logger.Infof("api rejected token profile=%s, session ended", middleware.MaskID(middleware.GetProfileID(r.Context())))
		return
	}
	logger.Errorf("dashboard %s: %v", r.URL.Path, err)
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
