// Package notify рассылает события об освободившихся местах внешним получателям.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parkspot/internal/model"
)

// SpotVacatedEvent описывает событие об освободившемся месте для оповещения пользователей рядом.
type SpotVacatedEvent struct {
	SpotID      string            `json:"spot_id"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	SurfaceType model.SurfaceType `json:"surface_type"`
	ReportedBy  string            `json:"reported_by"`
	ReportedAt  time.Time         `json:"reported_at"`
}

// EventFromSpot формирует событие по сообщению об освободившемся месте.
func EventFromSpot(spot model.PublicSpot) SpotVacatedEvent {
	return SpotVacatedEvent{
		SpotID:      spot.ID,
		Lat:         spot.Lat,
		Lng:         spot.Lng,
		SurfaceType: spot.SurfaceType,
		ReportedBy:  spot.ReportedBy,
		ReportedAt:  spot.ReportedAt,
	}
}

// Dispatcher доставляет события об освободившихся местах.
type Dispatcher interface {
	SpotVacated(ctx context.Context, event SpotVacatedEvent) error
	Close() error
}

// LogDispatcher только пишет событие в журнал. Используется, когда доставка не настроена.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher создаёт диспетчер, пишущий события в журнал.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// SpotVacated пишет событие в журнал.
func (d *LogDispatcher) SpotVacated(_ context.Context, event SpotVacatedEvent) error {
	d.logger.Info("spot vacated notification",
		zap.String("spot_id", event.SpotID),
		zap.Float64("lat", event.Lat),
		zap.Float64("lng", event.Lng),
		zap.String("surface", string(event.SurfaceType)),
	)
	return nil
}

// Close ничего не делает.
func (d *LogDispatcher) Close() error { return nil }
