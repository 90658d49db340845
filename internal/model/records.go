package model

// Даты приходят от API строками (ISO-8601 с временем или без); разбор — в analytics.

type Reservation struct {
	ID              string `json:"_id,omitempty"`
	CustomerID      string `json:"customerId"`
	AppointmentDate string `json:"appointmentDate"`
	ReservationDate string `json:"reservationDate,omitempty"`
	TimeSlot        string `json:"timeSlot,omitempty"`
	AppointmentType string `json:"appointmentType,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Status          string `json:"status"`
}

type CallLog struct {
	ID           string  `json:"_id,omitempty"`
	CustomerID   string  `json:"customerId,omitempty"`
	PhoneNumber  string  `json:"phoneNumber,omitempty"`
	CallType     string  `json:"callType,omitempty"`
	CallStatus   string  `json:"callStatus,omitempty"`
	CallOutcome  string  `json:"callOutcome,omitempty"`
	StartTime    string  `json:"startTime,omitempty"`
	Duration     int     `json:"duration,omitempty"`
	QualityScore float64 `json:"qualityScore,omitempty"`
	CallDate     string  `json:"callDate,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
}

type Customer struct {
	CustomerID        string `json:"customerId"`
	Name              string `json:"name"`
	Phone             string `json:"phone,omitempty"`
	TotalReservations int    `json:"totalReservations"`
	LastReservation   string `json:"lastReservation,omitempty"`
}
