package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hospitalbooking/internal/apiclient"
	"github.com/hospitalbooking/internal/guard"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/middleware"
	"github.com/hospitalbooking/internal/model"
	"github.com/hospitalbooking/internal/storage"
)

// AuthHandler — вход, регистрация и выход. Учётные данные проверяет внешний API,
// консоль только сохраняет полученный токен через session.Manager.
type AuthHandler struct {
	store storage.Store
	api   *apiclient.Client
}

func NewAuthHandler(store storage.Store, api *apiclient.Client) *AuthHandler {
	return &AuthHandler{store: store, api: api}
}

type loginRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Remember checkbox `json:"remember"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	data, err := h.api.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status, msg := apiErrorStatus(err, "Unable to login. Please try again.")
		logger.Infof("login failed profile=%s: %v", middleware.MaskID(middleware.GetProfileID(r.Context())), err)
		writeError(w, status, msg)
		return
	}
	if data.Token == "" {
		writeError(w, http.StatusBadGateway, "Login succeeded but no token was returned.")
		return
	}

	m := openSession(r, h.store)
	if err := m.Login(r.Context(), data.Token, data.HospitalProfile, bool(req.Remember)); err != nil {
		logger.Errorf("login save session profile=%s: %v", middleware.MaskID(m.Scope()), err)
		writeError(w, http.StatusInternalServerError, "Unable to login. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{Redirect: guard.PathDashboard, Replace: true})
}

type registerRequest struct {
	HospitalName    string      `json:"hospitalName"`
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	ConfirmPassword string      `json:"confirmPassword"`
	Phone           string      `json:"phone"`
	Address         string      `json:"address"`
	City            string      `json:"city"`
	State           string      `json:"state"`
	ZipCode         string      `json:"zipCode"`
	Country         string      `json:"country"`
	Longitude       looseString `json:"longitude"`
	Latitude        looseString `json:"latitude"`
}

// location проверяет координаты так же, как форма регистрации: сначала разбор, затем диапазоны.
func (req registerRequest) location() (model.Location, string) {
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(string(req.Longitude)), 64)
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(string(req.Latitude)), 64)
	if errLon != nil || errLat != nil {
		return model.Location{}, "Please provide valid latitude and longitude values."
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return model.Location{}, "Longitude must be between -180 and 180 and latitude between -90 and 90."
	}
	return model.Location{
		Type:        "Point",
		Coordinates: []float64{lon, lat},
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		Country:     req.Country,
	}, ""
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "Passwords do not match.")
		return
	}
	loc, msg := req.location()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	data, err := h.api.Signup(r.Context(), apiclient.SignupRequest{
		HospitalName: req.HospitalName,
		Email:        strings.TrimSpace(req.Email),
		Password:     req.Password,
		Phone:        req.Phone,
		Location:     loc,
	})
	if err != nil {
		status, msg := apiErrorStatus(err, "Unable to register. Please try again.")
		writeError(w, status, msg)
		return
	}
	// Без токена регистрация прошла, но войти нужно вручную.
	if data.Token == "" {
		writeJSON(w, http.StatusOK, redirectResponse{Redirect: guard.PathLogin, Replace: true})
		return
	}

	m := openSession(r, h.store)
	if err := m.Login(r.Context(), data.Token, data.HospitalProfile, false); err != nil {
		logger.Errorf("register save session profile=%s: %v", middleware.MaskID(m.Scope()), err)
		writeError(w, http.StatusInternalServerError, "Unable to register. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{Redirect: guard.PathDashboard, Replace: true})
}

// Logout завершает сессию профиля; остальные вкладки узнают об этом через хранилище.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	m := openSession(r, h.store)
	if err := m.Logout(r.Context()); err != nil {
		logger.Errorf("logout profile=%s: %v", middleware.MaskID(m.Scope()), err)
		writeError(w, http.StatusInternalServerError, "Unable to sign out. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{Redirect: guard.PathLogin, Replace: true})
}
