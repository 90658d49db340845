package model

import (
	"encoding/json"
	"strings"
)

// UnknownHospitalName показывается, когда профиль больницы отсутствует или не читается.
const UnknownHospitalName = "Hospital"

// HospitalProfile — профиль, который API возвращает вместе с токеном при входе/регистрации.
// Хранится в hospitalProfile только для отображения.
type HospitalProfile struct {
	HospitalID   string `json:"hospitalId,omitempty"`
	HospitalName string `json:"hospitalName,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// DisplayName возвращает название больницы или UnknownHospitalName.
func (p HospitalProfile) DisplayName() string {
	if name := strings.TrimSpace(p.HospitalName); name != "" {
		return name
	}
	return UnknownHospitalName
}

// ParseHospitalProfile разбирает сохранённый профиль. Пустая строка и битый JSON дают
// пустой профиль и ok=false; это не ошибка.
func ParseHospitalProfile(raw string) (HospitalProfile, bool) {
	var p HospitalProfile
	if strings.TrimSpace(raw) == "" {
		return p, false
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return HospitalProfile{}, false
	}
	return p, true
}

// Location — GeoJSON-точка адреса больницы: Coordinates = [longitude, latitude].
type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	ZipCode     string    `json:"zipCode,omitempty"`
	Country     string    `json:"country,omitempty"`
}

// HospitalSettings — карточка больницы (вкладка Settings).
type HospitalSettings struct {
	HospitalID   string          `json:"hospitalId,omitempty"`
	HospitalName string          `json:"hospitalName"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Location     *Location       `json:"location,omitempty"`
	Availability json.RawMessage `json:"availability,omitempty"`
}
