// Package model содержит доменные сущности сервиса parkspot.
package model

import "time"

// Role описывает роль пользователя маркетплейса.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// User представляет зарегистрированного пользователя маркетплейса.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	FirebaseUID string    `json:"firebase_uid"`
	CreatedAt   time.Time `json:"created_at"`
}

// ParkingSpot описывает парковочное место, выставленное хостом.
type ParkingSpot struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Address               string    `json:"address"`
	Latitude              float64   `json:"latitude"`
	Longitude             float64   `json:"longitude"`
	PricePerHour          float64   `json:"price_per_hour"`
	Description           string    `json:"description,omitempty"`
	Features              []string  `json:"features,omitempty"`
	ImageURLs             []string  `json:"image_urls,omitempty"`
	IsAvailable           bool      `json:"is_available"`
	HostID                *int64    `json:"host_id,omitempty"`
	Rating                float64   `json:"rating"`
	AvailabilityDays      []string  `json:"availability_days,omitempty"`
	AvailabilityStartTime string    `json:"availability_start_time,omitempty"`
	AvailabilityEndTime   string    `json:"availability_end_time,omitempty"`
	IsAccessible          bool      `json:"is_accessible"`
	CreatedAt             time.Time `json:"created_at"`
}

// BookingStatus описывает статус бронирования.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking описывает бронирование парковочного места гостем.
type Booking struct {
	ID            int64         `json:"id"`
	ParkingSpotID int64         `json:"parking_spot_id"`
	GuestID       int64         `json:"guest_id"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	TotalPrice    float64       `json:"total_price"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}
