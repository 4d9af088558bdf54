package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"store_sim/internal/catalog"
	"store_sim/internal/checkout"
	"store_sim/internal/decision"
	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/storage"
	"store_sim/internal/weather"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SpawnerConfig controls how often customers appear and what they want.
type SpawnerConfig struct {
	// CheckInterval is how often a spawn roll happens.
	CheckInterval time.Duration
	// HourlyChance is the spawn probability per roll, indexed by
	// hour-OpeningHour. Hours past the end of the slice use DefaultChance.
	HourlyChance []float64
	// DefaultChance applies when HourlyChance has no entry for the hour.
	DefaultChance float64
	// MaxListItems caps the basic shopping list length.
	MaxListItems int
	// MaxImpulseItems caps the extra impulse items appended.
	MaxImpulseItems int
	// ImpulseChance is the probability a customer picks up impulse items.
	ImpulseChance float64

	Customer CustomerConfig
}

// DefaultSpawnerConfig mirrors the original simulation's tuning.
func DefaultSpawnerConfig() SpawnerConfig {
	return SpawnerConfig{
		CheckInterval:   2 * time.Second,
		DefaultChance:   0.35,
		MaxListItems:    5,
		MaxImpulseItems: 2,
		ImpulseChance:   0.5,
		Customer:        DefaultCustomerConfig(),
	}
}

// Spawner creates customer sessions while the store is open. Each customer
// gets a random shopping list from the catalog, optional impulse items and a
// random personality, and is handed the shared collaborators it needs.
type Spawner struct {
	catalog *catalog.Catalog
	engine  *decision.Engine
	queue   *checkout.Queue
	ledger  storage.Ledger
	weather *weather.Manager
	clock   *Clock
	cfg     SpawnerConfig
	rng     *rand.Rand
	log     *logger.Logger

	mu        sync.Mutex
	customers map[string]*Customer
	wg        sync.WaitGroup
}

// NewSpawner wires a spawner to its collaborators.
func NewSpawner(cat *catalog.Catalog, engine *decision.Engine, queue *checkout.Queue,
	ledger storage.Ledger, wm *weather.Manager, clock *Clock, cfg SpawnerConfig, l *logger.Logger) *Spawner {
	return &Spawner{
		catalog:   cat,
		engine:    engine,
		queue:     queue,
		ledger:    ledger,
		weather:   wm,
		clock:     clock,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       l.Component("spawner"),
		customers: make(map[string]*Customer),
	}
}

// Run rolls for new customers until ctx is cancelled, then waits for all
// active sessions to wind down.
func (s *Spawner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			if !s.clock.IsOpen() {
				continue
			}
			if s.rng.Float64() < s.chanceNow() {
				s.Spawn(ctx)
			}
		}
	}
}

// Spawn creates and starts one customer session, returning it.
func (s *Spawner) Spawn(ctx context.Context) *Customer {
	list := s.buildShoppingList()
	if len(list) == 0 {
		s.log.Warn("catalog is empty, nothing to shop for")
		return nil
	}

	temperature, precipitation := s.weather.Snapshot()
	id := uuid.NewString()
	impulsiveness := s.rng.Float64()
	generosity := s.rng.Float64()

	c := NewCustomer(CustomerParams{
		ID:            id,
		List:          list,
		Impulsiveness: impulsiveness,
		Generosity:    generosity,
		EvalContext: decision.Context{
			Precipitation: precipitation,
			Temperature:   temperature,
			Impulsiveness: impulsiveness,
			Generosity:    generosity,
		},
		Engine: s.engine,
		Lookup: s.catalog,
		Queue:  s.queue,
		Ledger: s.ledger,
		Config: s.cfg.Customer,
		Log:    s.log,
		OnExit: s.remove,
	})

	s.mu.Lock()
	s.customers[id] = c
	s.mu.Unlock()

	s.log.Info("customer spawned",
		zap.String("customer", id),
		zap.Int("list_items", len(list)),
		zap.Float64("impulsiveness", impulsiveness),
		zap.Float64("generosity", generosity),
		zap.Float64("hour", s.clock.Hour()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.Run(ctx)
	}()
	return c
}

// Active returns the number of customers currently in the store.
func (s *Spawner) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers)
}

// Wait blocks until every customer session has finished.
func (s *Spawner) Wait() {
	s.wg.Wait()
}

func (s *Spawner) remove(id string) {
	s.mu.Lock()
	delete(s.customers, id)
	s.mu.Unlock()
	s.log.Info("customer gone", zap.String("customer", id))
}

func (s *Spawner) chanceNow() float64 {
	slot := int(s.clock.Hour() - OpeningHour)
	if slot >= 0 && slot < len(s.cfg.HourlyChance) {
		return s.cfg.HourlyChance[slot]
	}
	return s.cfg.DefaultChance
}

// buildShoppingList draws a deduped basic list from the non-impulse
// assortment and, by chance, appends a few impulse items that are not
// already on it.
func (s *Spawner) buildShoppingList() models.ShoppingList {
	var basics, impulses []models.Product
	for _, p := range s.catalog.List() {
		if p.IsImpulse {
			impulses = append(impulses, p)
		} else {
			basics = append(basics, p)
		}
	}

	s.rng.Shuffle(len(basics), func(i, j int) { basics[i], basics[j] = basics[j], basics[i] })

	maxItems := s.cfg.MaxListItems
	if maxItems <= 0 {
		maxItems = 1
	}
	count := 1 + s.rng.Intn(maxItems)
	if count > len(basics) {
		count = len(basics)
	}

	list := make(models.ShoppingList, 0, count+s.cfg.MaxImpulseItems)
	seen := make(map[string]bool)
	for _, p := range basics[:count] {
		list = append(list, p.Name)
		seen[p.Name] = true
	}

	if len(impulses) > 0 && s.cfg.MaxImpulseItems > 0 && s.rng.Float64() < s.cfg.ImpulseChance {
		s.rng.Shuffle(len(impulses), func(i, j int) { impulses[i], impulses[j] = impulses[j], impulses[i] })
		extra := 1 + s.rng.Intn(s.cfg.MaxImpulseItems)
		for _, p := range impulses {
			if extra == 0 {
				break
			}
			if seen[p.Name] {
				continue
			}
			list = append(list, p.Name)
			seen[p.Name] = true
			extra--
		}
	}
	return list
}
