// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"time"

	"github.com/mmeshcher/parkspot/internal/geo"
	"github.com/mmeshcher/parkspot/internal/model"
)

var weekdays = map[string]struct{}{
	"monday":    {},
	"tuesday":   {},
	"wednesday": {},
	"thursday":  {},
	"friday":    {},
	"saturday":  {},
	"sunday":    {},
}

// IsValidRole проверяет, что роль пользователя host или guest.
func IsValidRole(role string) bool {
	return role == string(model.RoleHost) || role == string(model.RoleGuest)
}

// IsValidEmail выполняет упрощённую проверку адреса электронной почты.
func IsValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// IsValidClock проверяет время суток в формате ЧЧ:ММ.
func IsValidClock(v string) bool {
	if len(v) != 5 {
		return false
	}
	_, err := time.Parse("15:04", v)
	return err == nil
}

// IsValidWeekday проверяет название дня недели в нижнем регистре.
func IsValidWeekday(day string) bool {
	_, ok := weekdays[day]
	return ok
}

// ValidateParkingSpot проверяет объявление хоста и возвращает описание первой ошибки.
func ValidateParkingSpot(s model.ParkingSpot) (string, bool) {
	if strings.TrimSpace(s.Name) == "" {
		return "name is required", false
	}
	if strings.TrimSpace(s.Address) == "" {
		return "address is required", false
	}
	if !geo.ValidCoordinates(s.Latitude, s.Longitude) {
		return "invalid coordinates", false
	}
	if s.PricePerHour < 0 {
		return "price per hour must not be negative", false
	}
	if s.Rating < 0 || s.Rating > 5 {
		return "rating must be between 0 and 5", false
	}
	for _, d := range s.AvailabilityDays {
		if !IsValidWeekday(d) {
			return "unknown availability day " + d, false
		}
	}
	if s.AvailabilityStartTime != "" && !IsValidClock(s.AvailabilityStartTime) {
		return "invalid availability start time", false
	}
	if s.AvailabilityEndTime != "" && !IsValidClock(s.AvailabilityEndTime) {
		return "invalid availability end time", false
	}
	return "", true
}
