// Package apiclient — клиент внешнего REST API бронирования (вход, регистрация, данные дашборда).
//
// Токен прикрепляется к запросу из сессии, переданной через контекст (WithSession).
// Ответ 401 завершает сессию через её собственный Logout, а не чисткой хранилища в обход менеджера.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/model"
)

// ErrUnauthorized — API отверг токен (401).
var ErrUnauthorized = errors.New("apiclient: unauthorized")

// Session — то, что клиенту нужно от session.Manager.
type Session interface {
	Token() string
	Logout(ctx context.Context) error
}

type ctxKey struct{}

// WithSession кладёт сессию вкладки в контекст запроса.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func sessionFrom(ctx context.Context) Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(ctxKey{}).(Session)
	return s
}

// APIError — неуспешный ответ API. Message берётся из тела ответа либо из текста по умолчанию;
// во втором случае Generic = true.
type APIError struct {
	Status  int
	Message string
	Generic bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// envelope — общий формат ответов API: {"success": ..., "message": ..., "data": {...}}.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetLogger(restyLogger{})

	httpClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if s := sessionFrom(r.Context()); s != nil {
			if token := s.Token(); token != "" {
				r.SetAuthToken(token)
			}
		}
		return nil
	})
	return &Client{http: httpClient}
}

// restyLogger направляет внутренние сообщения resty в общий логгер.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) { logger.Errorf("resty: "+format, v...) }
func (restyLogger) Warnf(format string, v ...any)  { logger.Infof("resty: "+format, v...) }
func (restyLogger) Debugf(format string, v ...any) { logger.Debugf("resty: "+format, v...) }

// call выполняет запрос и возвращает data из конверта ответа.
func call[T any](ctx context.Context, c *Client, method, path string, query map[string]string, body any, fallback string) (T, error) {
	defer logger.DeferLogDuration("api "+method+" "+path, time.Now())()
	var (
		ok   envelope[T]
		fail errorBody
		zero T
	)
	req := c.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&ok).
		SetError(&fail)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if resp != nil && resp.StatusCode() == http.StatusUnauthorized {
		endSession(ctx, method+" "+path)
	}
	// Ответ с ошибкой важнее ошибки разбора его тела.
	if resp != nil && resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(fail.Message)}
		if apiErr.Message == "" {
			apiErr.Message, apiErr.Generic = fallback, true
		}
		return zero, apiErr
	}
	if err != nil {
		return zero, fmt.Errorf("apiclient %s %s: %w", method, path, err)
	}
	return ok.Data, nil
}

// endSession завершает сессию вкладки после 401 через её Logout.
func endSession(ctx context.Context, what string) {
	s := sessionFrom(ctx)
	if s == nil || s.Token() == "" {
		return
	}
	if err := s.Logout(ctx); err != nil {
		logger.Errorf("api 401 %s: session logout failed: %v", what, err)
		return
	}
	logger.Infof("api 401 %s: session ended", what)
}

// AuthData — data ответа login/signup: токен и профиль больницы.
type AuthData struct {
	Token string `json:"token"`
	model.HospitalProfile
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthData, error) {
	return call[AuthData](ctx, c, http.MethodPost, "/api/auth/login",
		nil, map[string]string{"email": email, "password": password},
		"Unable to login. Please try again.")
}

type SignupRequest struct {
	HospitalName string         `json:"hospitalName"`
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	Phone        string         `json:"phone"`
	Location     model.Location `json:"location"`
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (AuthData, error) {
	return call[AuthData](ctx, c, http.MethodPost, "/api/auth/signup", nil, req,
		"Unable to register. Please try again.")
}

type reservationsData struct {
	Reservations []model.Reservation `json:"reservations"`
}

type callLogsData struct {
	CallLogs []model.CallLog `json:"callLogs"`
}

type customersData struct {
	Customers []model.Customer `json:"customers"`
}

func (c *Client) Reservations(ctx context.Context, f DateFilter) ([]model.Reservation, error) {
	data, err := call[reservationsData](ctx, c, http.MethodGet, "/api/reservations", f.Params(), nil, "Unable to load reservations.")
	return data.Reservations, err
}

func (c *Client) CallLogs(ctx context.Context, f DateFilter) ([]model.CallLog, error) {
	data, err := call[callLogsData](ctx, c, http.MethodGet, "/api/call-logs", f.Params(), nil, "Unable to load call logs.")
	return data.CallLogs, err
}

func (c *Client) Customers(ctx context.Context) ([]model.Customer, error) {
	data, err := call[customersData](ctx, c, http.MethodGet, "/api/customers", nil, nil, "Unable to load customers.")
	return data.Customers, err
}

func (c *Client) Hospital(ctx context.Context, hospitalID string) (model.HospitalSettings, error) {
	return call[model.HospitalSettings](ctx, c, http.MethodGet, "/api/hospitals/"+url.PathEscape(hospitalID), nil, nil,
		"Unable to load settings.")
}
