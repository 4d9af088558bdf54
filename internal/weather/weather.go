// Package weather simulates the two environmental inputs the prediction
// service cares about: temperature and precipitation. Temperature follows a
// parabolic day curve peaking mid-afternoon; precipitation flips between dry
// and rain with a configured chance on every update tick.
package weather

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"store_sim/internal/pkg/logger"

	"go.uber.org/zap"
)

// peakHour is when the day curve tops out.
const peakHour = 14.0

// Clock supplies the current game hour.
type Clock interface {
	Hour() float64
}

// Config bounds the simulated conditions.
type Config struct {
	MinNightTemp float64
	MaxDayTemp   float64
	// ChangeChance is the probability per tick that precipitation flips.
	ChangeChance float64
	// Tick is how often conditions are recomputed.
	Tick time.Duration
}

// DefaultConfig mirrors the original simulation's tuning.
func DefaultConfig() Config {
	return Config{MinNightTemp: 10, MaxDayTemp: 30, ChangeChance: 0.3, Tick: time.Second}
}

// Manager owns the current weather snapshot.
type Manager struct {
	mu            sync.RWMutex
	temperature   float64
	precipitation float64

	clock Clock
	cfg   Config
	rng   *rand.Rand
	log   *logger.Logger
}

// NewManager creates a weather manager reading game time from clock.
func NewManager(clock Clock, cfg Config, l *logger.Logger) *Manager {
	m := &Manager{clock: clock, cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano())), log: l}
	m.temperature = m.temperatureAt(clock.Hour())
	return m
}

// Run ticks the weather until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.update()
		}
	}
}

// Snapshot returns the current temperature and precipitation.
func (m *Manager) Snapshot() (temperature, precipitation float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.temperature, m.precipitation
}

func (m *Manager) update() {
	hour := m.clock.Hour()
	temp := m.temperatureAt(hour)

	m.mu.Lock()
	m.temperature = temp
	if m.rng.Float64() < m.cfg.ChangeChance {
		if m.precipitation == 0 {
			m.precipitation = 1
		} else {
			m.precipitation = 0
		}
		m.log.Info("weather changed",
			zap.Float64("hour", hour),
			zap.Float64("temperature", m.temperature),
			zap.Float64("precipitation", m.precipitation))
	}
	m.mu.Unlock()
}

// temperatureAt maps a game hour onto the parabolic day curve: coldest in
// the middle of the night, warmest at peakHour.
func (m *Manager) temperatureAt(hour float64) float64 {
	// Distance from the afternoon peak, wrapped so 2:00 and 26:00 agree.
	dist := math.Abs(hour - peakHour)
	if dist > 12 {
		dist = 24 - dist
	}
	factor := 1 - (dist*dist)/144
	return m.cfg.MinNightTemp + (m.cfg.MaxDayTemp-m.cfg.MinNightTemp)*factor
}
