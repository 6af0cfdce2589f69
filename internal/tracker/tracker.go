// Package tracker реализует учёт освободившихся уличных мест: сообщения пользователей,
// переходы статусов по времени, подтверждения и рейтинг надёжности авторов.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mmeshcher/parkspot/internal/geo"
	"github.com/mmeshcher/parkspot/internal/model"
)

// ErrInvalidReport возвращается, если сообщение об освободившемся месте некорректно.
var ErrInvalidReport = errors.New("invalid spot report")

// Options содержит временные параметры жизненного цикла мест.
type Options struct {
	// UncertainAfter через сколько после сообщения место становится сомнительным.
	UncertainAfter time.Duration
	// EvictAfter через сколько после сообщения занятое место удаляется.
	EvictAfter time.Duration
	// NearRadius радиус поиска по умолчанию в метрах.
	NearRadius float64
}

// DefaultOptions возвращает параметры, принятые в мобильном приложении.
func DefaultOptions() Options {
	return Options{
		UncertainAfter: 10 * time.Minute,
		EvictAfter:     30 * time.Minute,
		NearRadius:     200,
	}
}

// Tracker управляет сообщениями об освободившихся местах и рейтингами их авторов.
// Один мьютекс защищает оба хранилища, поэтому подтверждение атомарно
// относительно новых сообщений, таймеров и удаления.
type Tracker struct {
	mu     sync.Mutex
	spots  SpotStore
	ledger LedgerStore
	timers map[string]clockwork.Timer

	clock  clockwork.Clock
	logger *zap.Logger
	opts   Options
	newID  func() string
}

// New создаёт трекер поверх указанных хранилищ.
func New(spots SpotStore, ledger LedgerStore, clock clockwork.Clock, logger *zap.Logger, opts Options) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.UncertainAfter <= 0 {
		opts.UncertainAfter = defaults.UncertainAfter
	}
	if opts.EvictAfter <= 0 {
		opts.EvictAfter = defaults.EvictAfter
	}
	if opts.NearRadius <= 0 {
		opts.NearRadius = defaults.NearRadius
	}

	return &Tracker{
		spots:  spots,
		ledger: ledger,
		timers: make(map[string]clockwork.Timer),
		clock:  clock,
		logger: logger,
		opts:   opts,
		newID:  uuid.NewString,
	}
}

// NewInMemory создаёт трекер с хранилищами в памяти процесса.
func NewInMemory(clock clockwork.Clock, logger *zap.Logger, opts Options) *Tracker {
	return New(NewMemorySpotStore(), NewMemoryLedgerStore(), clock, logger, opts)
}

// ReportLeaving регистрирует сообщение пользователя о том, что он освободил место.
// Через UncertainAfter место, если его никто не занял, становится сомнительным.
func (t *Tracker) ReportLeaving(userID string, lat, lng float64, surface model.SurfaceType) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidReport)
	}
	if !geo.ValidCoordinates(lat, lng) {
		return "", fmt.Errorf("%w: coordinates %v, %v", ErrInvalidReport, lat, lng)
	}
	if !surface.Valid() {
		return "", fmt.Errorf("%w: surface type %q", ErrInvalidReport, surface)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	spot := model.PublicSpot{
		ID:          t.newID(),
		Lat:         lat,
		Lng:         lng,
		SurfaceType: surface,
		Status:      model.SpotStatusAvailable,
		ReportedAt:  now,
		ReportedBy:  userID,
		ConfirmedBy: []string{},
		ExpiresAt:   now.Add(t.opts.UncertainAfter),
	}
	t.spots.Put(spot)

	id := spot.ID
	t.timers[id] = t.clock.AfterFunc(t.opts.UncertainAfter, func() {
		t.expire(id)
	})

	r := t.reliabilityLocked(userID)
	r.TotalReports++
	t.commitLocked(&r, now)

	t.logger.Info("public spot reported",
		zap.String("spot_id", id),
		zap.String("user_id", userID),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("surface", string(surface)),
	)

	return id, nil
}

// ConfirmTaken отмечает место занятым. Возвращает false, если место неизвестно.
// Счётчик подтверждений автора увеличивается только при первом переходе в occupied.
func (t *Tracker) ConfirmTaken(spotID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	spot, ok := t.spots.Get(spotID)
	if !ok {
		return false
	}

	now := t.clock.Now()
	firstConfirmation := spot.Status != model.SpotStatusOccupied
	newConfirmer := !slices.Contains(spot.ConfirmedBy, userID)

	spot.Status = model.SpotStatusOccupied
	if newConfirmer {
		spot.ConfirmedBy = append(spot.ConfirmedBy, userID)
	}
	t.spots.Put(spot)
	t.stopTimerLocked(spotID)

	if firstConfirmation {
		reporter := t.reliabilityLocked(spot.ReportedBy)
		reporter.ConfirmedReports++
		t.commitLocked(&reporter, now)
	}

	confirmer := t.reliabilityLocked(userID)
	if newConfirmer {
		confirmer.TakenReports++
	}
	t.commitLocked(&confirmer, now)

	t.logger.Info("public spot confirmed taken",
		zap.String("spot_id", spotID),
		zap.String("user_id", userID),
		zap.Bool("first_confirmation", firstConfirmation),
	)

	return true
}

// Spot возвращает текущее состояние места без удаления устаревших.
func (t *Tracker) Spot(id string) (model.PublicSpot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	spot, ok := t.spots.Get(id)
	if !ok {
		return model.PublicSpot{}, false
	}
	t.reconcileLocked(&spot, t.clock.Now())
	return spot, true
}

// ActiveSpots возвращает незанятые места, попутно удаляя занятые старше EvictAfter.
func (t *Tracker) ActiveSpots() []model.PublicSpot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.activeLocked(t.clock.Now())
}

// SpotsNear возвращает активные места в пределах radiusMeters от точки.
// При radiusMeters <= 0 используется радиус по умолчанию.
func (t *Tracker) SpotsNear(lat, lng, radiusMeters float64) []model.PublicSpot {
	if radiusMeters <= 0 {
		radiusMeters = t.opts.NearRadius
	}

	active := t.ActiveSpots()
	res := make([]model.PublicSpot, 0, len(active))
	for _, spot := range active {
		if geo.DistanceMeters(lat, lng, spot.Lat, spot.Lng) <= radiusMeters {
			res = append(res, spot)
		}
	}
	return res
}

// UserScore возвращает рейтинг пользователя. Второе значение false, если пользователь не встречался.
func (t *Tracker) UserScore(userID string) (model.Reliability, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ledger.Get(userID)
}

// StartJanitor периодически удаляет устаревшие занятые места, пока не отменён ctx.
func (t *Tracker) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := t.clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				t.mu.Lock()
				t.activeLocked(t.clock.Now())
				t.mu.Unlock()
			}
		}
	}()
}

// Close останавливает все отложенные переходы статусов.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range t.timers {
		t.stopTimerLocked(id)
	}
}

func (t *Tracker) expire(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.timers, id)

	spot, ok := t.spots.Get(id)
	if !ok || spot.Status != model.SpotStatusAvailable {
		return
	}
	spot.Status = model.SpotStatusUncertain
	t.spots.Put(spot)

	t.logger.Debug("public spot became uncertain", zap.String("spot_id", id))
}

func (t *Tracker) activeLocked(now time.Time) []model.PublicSpot {
	all := t.spots.All()
	res := make([]model.PublicSpot, 0, len(all))

	for i := range all {
		spot := all[i]
		if spot.Status == model.SpotStatusOccupied {
			if now.Sub(spot.ReportedAt) > t.opts.EvictAfter {
				t.spots.Remove(spot.ID)
				t.stopTimerLocked(spot.ID)
				t.logger.Debug("stale occupied spot evicted", zap.String("spot_id", spot.ID))
			}
			continue
		}
		t.reconcileLocked(&spot, now)
		res = append(res, spot)
	}

	slices.SortFunc(res, func(a, b model.PublicSpot) int {
		if c := a.ReportedAt.Compare(b.ReportedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return res
}

// reconcileLocked применяет переход в uncertain, если таймер ещё не сработал.
func (t *Tracker) reconcileLocked(spot *model.PublicSpot, now time.Time) {
	if spot.Status != model.SpotStatusAvailable || now.Before(spot.ExpiresAt) {
		return
	}
	spot.Status = model.SpotStatusUncertain
	t.spots.Put(*spot)
}

func (t *Tracker) stopTimerLocked(id string) {
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *Tracker) reliabilityLocked(userID string) model.Reliability {
	if r, ok := t.ledger.Get(userID); ok {
		return r
	}
	return model.Reliability{
		UserID:           userID,
		ReliabilityScore: 100,
		Badges:           []model.Badge{},
	}
}

func (t *Tracker) commitLocked(r *model.Reliability, now time.Time) {
	r.ReliabilityScore = ReliabilityScore(r.TotalReports, r.ConfirmedReports)
	for _, b := range AwardBadges(r, now) {
		t.logger.Info("badge unlocked", zap.String("user_id", r.UserID), zap.String("badge", b.ID))
	}
	t.ledger.Put(*r)
}
