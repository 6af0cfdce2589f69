// Package geo содержит геодезические вычисления для поиска мест поблизости.
package geo

import "math"

// EarthRadiusMeters средний радиус Земли, используемый формулой гаверсинусов.
const EarthRadiusMeters = 6371000.0

const metersPerDegreeLat = 111320.0

// DistanceMeters возвращает расстояние по большому кругу между двумя точками в метрах.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Box описывает прямоугольник в градусах, покрывающий окружность заданного радиуса.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox возвращает прямоугольник, содержащий все точки в пределах radiusMeters от центра.
// Используется только как грубый предварительный фильтр перед DistanceMeters.
func BoundingBox(lat, lng, radiusMeters float64) Box {
	dLat := radiusMeters / metersPerDegreeLat

	cosLat := math.Cos(toRadians(lat))
	dLng := 180.0
	if cosLat > 1e-9 {
		dLng = math.Min(180, radiusMeters/(metersPerDegreeLat*cosLat))
	}

	return Box{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLng: lng - dLng,
		MaxLng: lng + dLng,
	}
}

// ValidCoordinates проверяет, что координаты конечны и лежат в допустимых диапазонах.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
