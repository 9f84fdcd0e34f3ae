// Package menu — состояние внешнего меню, которое видит диспетчер: режим обновления и флаг баннера по устройствам.
package menu

import (
	"sort"
	"sync"
)

// State безопасен для одновременного использования диспетчером, таймерами и HTTP.
type State struct {
	mu     sync.RWMutex
	update bool
	banner map[string]bool
}

// New создаёт меню вне режима обновления.
func New() *State {
	return &State{banner: make(map[string]bool)}
}

// InsideUpdateMenu — идёт обновление/настройка.
func (s *State) InsideUpdateMenu() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.update
}

// SetUpdateMenu включает или выключает режим обновления.
func (s *State) SetUpdateMenu(on bool) {
	s.mu.Lock()
	s.update = on
	s.mu.Unlock()
}

// EnableBannerDisplayed отмечает, что на устройстве показан баннер программы.
func (s *State) EnableBannerDisplayed(dev string) {
	s.mu.Lock()
	s.banner[dev] = true
	s.mu.Unlock()
}

// DisableBannerDisplayed снимает отметку.
func (s *State) DisableBannerDisplayed(dev string) {
	s.mu.Lock()
	delete(s.banner, dev)
	s.mu.Unlock()
}

// BannerDisplayed — показан ли баннер на устройстве.
func (s *State) BannerDisplayed(dev string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.banner[dev]
}

// Snapshot — состояние для /api/status.
type Snapshot struct {
	UpdateMenu bool     `json:"update_menu"`
	Banner     []string `json:"banner"`
}

// Snapshot снимает состояние.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{UpdateMenu: s.update, Banner: []string{}}
	for dev := range s.banner {
		out.Banner = append(out.Banner, dev)
	}
	sort.Strings(out.Banner)
	return out
}
