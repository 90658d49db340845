// Package analytics считает сводки дашборда на стороне консоли: тренды по датам,
// разбивку по статусам и KPI. Источник — списки, полученные из API.
package analytics

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hospitalbooking/internal/model"
)

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	unknownStatus   = "Unknown"
	// dayLabel — «Jan 2», как подписи осей на графиках.
	dayLabel = "Jan 2"
)

// dateLayouts — форматы дат, которые встречаются в ответах API.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

type DatePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type StatusSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type KPIs struct {
	TotalReservations int     `json:"totalReservations"`
	TotalCalls        int     `json:"totalCalls"`
	TotalCustomers    int     `json:"totalCustomers"`
	AvgCallQuality    float64 `json:"avgCallQuality"`
	SuccessRate       float64 `json:"successRate"`
}

type ReservationSummary struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
}

type Report struct {
	ReservationTrends []DatePoint        `json:"reservationTrends"`
	CallVolumeTrends  []DatePoint        `json:"callVolumeTrends"`
	StatusBreakdown   []StatusSlice      `json:"statusBreakdown"`
	KPIs              KPIs               `json:"kpis"`
	Summary           ReservationSummary `json:"summary"`
}

func Build(reservations []model.Reservation, calls []model.CallLog, customers []model.Customer) Report {
	return Report{
		ReservationTrends: ReservationTrends(reservations),
		CallVolumeTrends:  CallVolumeTrends(calls),
		StatusBreakdown:   StatusBreakdown(reservations),
		KPIs:              ComputeKPIs(reservations, calls, customers),
		Summary:           Summarize(reservations),
	}
}

// ReservationTrends группирует бронирования по дню приёма в порядке первого появления.
// Записи с неразборчивой датой пропускаются.
func ReservationTrends(reservations []model.Reservation) []DatePoint {
	g := newGrouper()
	for _, r := range reservations {
		g.add(r.AppointmentDate)
	}
	return g.points()
}

// CallVolumeTrends группирует звонки по callDate, при его отсутствии — по createdAt.
func CallVolumeTrends(calls []model.CallLog) []DatePoint {
	g := newGrouper()
	for _, c := range calls {
		d := c.CallDate
		if d == "" {
			d = c.CreatedAt
		}
		g.add(d)
	}
	return g.points()
}

func StatusBreakdown(reservations []model.Reservation) []StatusSlice {
	var order []string
	counts := make(map[string]int)
	for _, r := range reservations {
		s := r.Status
		if s == "" {
			s = unknownStatus
		}
		if _, ok := counts[s]; !ok {
			order = append(order, s)
		}
		counts[s]++
	}
	out := make([]StatusSlice, 0, len(order))
	for _, s := range order {
		out = append(out, StatusSlice{Name: capitalize(s), Value: counts[s]})
	}
	return out
}

func ComputeKPIs(reservations []model.Reservation, calls []model.CallLog, customers []model.Customer) KPIs {
	k := KPIs{
		TotalReservations: len(reservations),
		TotalCalls:        len(calls),
		TotalCustomers:    len(customers),
	}
	if len(calls) > 0 {
		var sum float64
		for _, c := range calls {
			sum += c.QualityScore
		}
		k.AvgCallQuality = round1(sum / float64(len(calls)))
	}
	if len(reservations) > 0 {
		confirmed := Summarize(reservations).Confirmed
		k.SuccessRate = round1(float64(confirmed) / float64(len(reservations)) * 100)
	}
	return k
}

func Summarize(reservations []model.Reservation) ReservationSummary {
	s := ReservationSummary{Total: len(reservations)}
	for _, r := range reservations {
		switch r.Status {
		case StatusConfirmed:
			s.Confirmed++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// ParseDate разбирает дату из ответа API; ok=false, если ни один формат не подошёл.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type grouper struct {
	order  []string
	counts map[string]int
}

func newGrouper() *grouper {
	return &grouper{counts: make(map[string]int)}
}

func (g *grouper) add(raw string) {
	t, ok := ParseDate(raw)
	if !ok {
		return
	}
	label := t.Format(dayLabel)
	if _, seen := g.counts[label]; !seen {
		g.order = append(g.order, label)
	}
	g.counts[label]++
}

func (g *grouper) points() []DatePoint {
	out := make([]DatePoint, 0, len(g.order))
	for _, label := range g.order {
		out = append(out, DatePoint{Date: label, Count: g.counts[label]})
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
