package model

import "time"

// SurfaceType описывает разметку уличного места: синие полосы платные, белые бесплатные.
type SurfaceType string

const (
	SurfaceMetered SurfaceType = "metered"
	SurfaceFree    SurfaceType = "free"
)

// Valid сообщает, входит ли тип разметки в допустимый набор.
func (t SurfaceType) Valid() bool {
	return t == SurfaceMetered || t == SurfaceFree
}

// SpotStatus описывает состояние освободившегося места.
type SpotStatus string

const (
	SpotStatusAvailable SpotStatus = "available"
	SpotStatusUncertain SpotStatus = "uncertain"
	SpotStatusOccupied  SpotStatus = "occupied"
)

// Rank возвращает порядковый номер статуса в жизненном цикле.
func (s SpotStatus) Rank() int {
	switch s {
	case SpotStatusAvailable:
		return 0
	case SpotStatusUncertain:
		return 1
	case SpotStatusOccupied:
		return 2
	default:
		return -1
	}
}

// PublicSpot описывает одно сообщение об освободившемся месте на улице.
type PublicSpot struct {
	ID          string      `json:"id"`
	Lat         float64     `json:"lat"`
	Lng         float64     `json:"lng"`
	SurfaceType SurfaceType `json:"surface_type"`
	Status      SpotStatus  `json:"status"`
	ReportedAt  time.Time   `json:"reported_at"`
	ReportedBy  string      `json:"reported_by"`
	ConfirmedBy []string    `json:"confirmed_by"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Clone возвращает копию места, не разделяющую срез подтверждений.
func (s PublicSpot) Clone() PublicSpot {
	c := s
	c.ConfirmedBy = append(make([]string, 0, len(s.ConfirmedBy)), s.ConfirmedBy...)
	return c
}

// Badge описывает награду, полученную пользователем.
type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// Reliability содержит счётчики сообщений пользователя и его рейтинг надёжности.
type Reliability struct {
	UserID           string  `json:"user_id"`
	TotalReports     int     `json:"total_reports"`
	ConfirmedReports int     `json:"confirmed_reports"`
	TakenReports     int     `json:"taken_reports"`
	ReliabilityScore int     `json:"reliability_score"`
	Badges           []Badge `json:"badges"`
}

// HasBadge сообщает, получена ли награда с указанным идентификатором.
func (r *Reliability) HasBadge(id string) bool {
	for _, b := range r.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// Clone возвращает копию записи, не разделяющую срез наград.
func (r Reliability) Clone() Reliability {
	c := r
	c.Badges = append(make([]Badge, 0, len(r.Badges)), r.Badges...)
	return c
}
