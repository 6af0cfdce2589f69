package tracker

import (
	"sync"

	"github.com/mmeshcher/parkspot/internal/model"
)

// SpotStore описывает хранилище сообщений об освободившихся местах.
type SpotStore interface {
	Put(spot model.PublicSpot)
	Get(id string) (model.PublicSpot, bool)
	All() []model.PublicSpot
	Remove(id string)
}

// LedgerStore описывает хранилище рейтингов надёжности пользователей.
type LedgerStore interface {
	Get(userID string) (model.Reliability, bool)
	Put(r model.Reliability)
}

// MemorySpotStore хранит места в памяти процесса.
type MemorySpotStore struct {
	mu    sync.RWMutex
	spots map[string]model.PublicSpot
}

// NewMemorySpotStore создаёт пустое хранилище мест.
func NewMemorySpotStore() *MemorySpotStore {
	return &MemorySpotStore{spots: make(map[string]model.PublicSpot)}
}

// Put вставляет или перезаписывает место по идентификатору.
func (s *MemorySpotStore) Put(spot model.PublicSpot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spots[spot.ID] = spot.Clone()
}

// Get возвращает копию места.
func (s *MemorySpotStore) Get(id string) (model.PublicSpot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spot, ok := s.spots[id]
	if !ok {
		return model.PublicSpot{}, false
	}
	return spot.Clone(), true
}

// All возвращает снимок всех мест на момент вызова.
func (s *MemorySpotStore) All() []model.PublicSpot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.PublicSpot, 0, len(s.spots))
	for _, spot := range s.spots {
		res = append(res, spot.Clone())
	}
	return res
}

// Remove удаляет место из хранилища.
func (s *MemorySpotStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.spots, id)
}

// MemoryLedgerStore хранит рейтинги надёжности в памяти процесса.
type MemoryLedgerStore struct {
	mu      sync.RWMutex
	entries map[string]model.Reliability
}

// NewMemoryLedgerStore создаёт пустое хранилище рейтингов.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{entries: make(map[string]model.Reliability)}
}

// Get возвращает копию записи пользователя.
func (s *MemoryLedgerStore) Get(userID string) (model.Reliability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[userID]
	if !ok {
		return model.Reliability{}, false
	}
	return r.Clone(), true
}

// Put сохраняет запись пользователя.
func (s *MemoryLedgerStore) Put(r model.Reliability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[r.UserID] = r.Clone()
}
