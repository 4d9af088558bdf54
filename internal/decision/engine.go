// Package decision implements the per-customer purchase decision engine.
// For one shopping list it drives a sequence of prediction requests against
// the external service, one in-flight request at a time, in list order.
// Transport failures are retried with a fixed delay up to a bounded number
// of attempts; exhaustion degrades to a skip decision for that item and the
// engine moves on. A permanently unreachable service therefore never stalls
// a customer, it only produces a customer that buys nothing.
package decision

import (
	"context"
	"math"
	"sync"
	"time"

	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/predict"

	"go.uber.org/zap"
)

const (
	// minPrice guards the price ratio against zero or negative shelf prices.
	minPrice = 0.01
	// buyThreshold is the strict cutoff on the adjusted probability.
	buyThreshold = 0.5

	// Placeholder stock features the prediction service expects.
	stockHourPlaceholder   = 1
	stockStatusPlaceholder = 1
)

// RetryPolicy bounds the per-item request loop.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the service contract: up to 10 attempts per
// item with a fixed one-second pause between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Delay: time.Second}
}

// Context carries the evaluation inputs that are not item-specific:
// the weather snapshot taken when the customer spawned and the customer's
// personality traits.
type Context struct {
	Precipitation float64
	Temperature   float64
	Impulsiveness float64
	Generosity    float64
}

// Record is the per-customer decision record: product name to buy/skip.
type Record struct {
	mu        sync.RWMutex
	decisions map[string]bool
}

func newRecord() *Record {
	return &Record{decisions: make(map[string]bool)}
}

// Buy reports the recorded decision for the named product. An item that was
// never recorded (unknown product, cancelled run) reads as skip.
func (r *Record) Buy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.decisions[name]
}

// Len returns the number of items decided so far.
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decisions)
}

func (r *Record) set(name string, buy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions[name] = buy
}

// Evaluation is a running or finished shopping-list evaluation. The owning
// customer session reads Record only after Done is closed; until then the
// customer keeps walking while the engine works in the background.
type Evaluation struct {
	record *Record
	done   chan struct{}
}

// Record returns the decision record being built.
func (ev *Evaluation) Record() *Record { return ev.record }

// Done is closed once every list item has been decided. It is never closed
// when the evaluation's context is cancelled mid-run.
func (ev *Evaluation) Done() <-chan struct{} { return ev.done }

// ProductLookup resolves a product name to its current catalog entry.
// The lookup is hit again at decision time so that price edits made while a
// request was in flight are reflected in the outcome.
type ProductLookup interface {
	Get(name string) (models.Product, bool)
}

// Engine turns shopping lists into decision records.
type Engine struct {
	client predict.Client
	lookup ProductLookup
	policy RetryPolicy
	log    *logger.Logger
}

// NewEngine creates an engine using the given prediction client, product
// lookup and retry policy.
func NewEngine(client predict.Client, lookup ProductLookup, policy RetryPolicy, l *logger.Logger) *Engine {
	return &Engine{client: client, lookup: lookup, policy: policy, log: l}
}

// EvaluateList starts evaluating the list in the background and returns
// immediately. Items are decided strictly in list order. Cancelling ctx
// abandons the run; no further requests are issued.
func (e *Engine) EvaluateList(ctx context.Context, list models.ShoppingList, evalCtx Context) *Evaluation {
	ev := &Evaluation{record: newRecord(), done: make(chan struct{})}
	go e.run(ctx, list, evalCtx, ev)
	return ev
}

func (e *Engine) run(ctx context.Context, list models.ShoppingList, evalCtx Context, ev *Evaluation) {
	for _, name := range list {
		item, ok := e.lookup.Get(name)
		if !ok {
			e.log.Warn("shopping list item not in catalog", zap.String("product", name))
			continue
		}
		if !e.evaluateItem(ctx, item, evalCtx, ev.record) {
			// Context cancelled, abandon the rest of the list.
			return
		}
	}
	close(ev.done)
}

// evaluateItem runs the bounded request/retry loop for one item and records
// the outcome. It returns false only when the context was cancelled.
func (e *Engine) evaluateItem(ctx context.Context, item models.Product, evalCtx Context, record *Record) bool {
	payload := models.PredictRequest{
		Precipitation:  evalCtx.Precipitation,
		AvgTemperature: evalCtx.Temperature,
		StockHourCount: stockHourPlaceholder,
		HoursStock:     stockStatusPlaceholder,
		FirstCategory:  item.Cat1,
		SecondCategory: item.Cat2,
		ThirdCategory:  item.Cat3,
		Impulsiveness:  evalCtx.Impulsiveness,
		Generosity:     evalCtx.Generosity,
	}
	if item.IsImpulse {
		payload.IsImpulse = 1
	}

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		resp, err := e.client.Predict(ctx, payload)
		if err == nil {
			e.decide(item.Name, resp, record)
			return true
		}

		if attempt == e.policy.MaxAttempts {
			// Fail open to no-sale: the item is skipped, the customer goes on.
			e.log.Error("prediction attempts exhausted, skipping item",
				zap.String("product", item.Name),
				zap.Int("attempts", attempt),
				zap.Error(err))
			record.set(item.Name, false)
			return true
		}

		e.log.Warn("prediction request failed, retrying",
			zap.String("product", item.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.policy.MaxAttempts),
			zap.Error(err))

		timer := time.NewTimer(e.policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	return true
}

// decide applies the price-sensitivity scaling to the raw probability and
// records the buy/skip outcome. Prices are re-read from the lookup so an
// edit made while the request was in flight still counts.
func (e *Engine) decide(name string, resp *models.PredictResponse, record *Record) {
	item, ok := e.lookup.Get(name)
	if !ok {
		record.set(name, false)
		return
	}

	ratio := PriceRatio(item.BasePrice, item.Price)
	adjusted := resp.FinalBuyProb * ratio
	buy := ShouldBuy(resp.FinalBuyProb, ratio)

	e.log.Info("item decided",
		zap.String("product", name),
		zap.Float64("base_price", item.BasePrice),
		zap.Float64("price", item.Price),
		zap.Float64("ratio", ratio),
		zap.Float64("raw_prob", resp.FinalBuyProb),
		zap.Float64("adjusted_prob", adjusted),
		zap.Int("label", resp.Prediction),
		zap.Bool("buy", buy))

	record.set(name, buy)
}

// PriceRatio returns basePrice / max(price, 0.01). A base price that was
// never set falls back to the current price, which yields a ratio of 1.
// The ratio is deliberately unbounded in both directions.
func PriceRatio(basePrice, price float64) float64 {
	if basePrice <= 0 {
		basePrice = price
	}
	return basePrice / math.Max(price, minPrice)
}

// ShouldBuy applies the strict decision cutoff: buy iff rawProb*ratio > 0.5.
// The adjusted probability is intentionally not clamped to [0,1].
func ShouldBuy(rawProb, ratio float64) bool {
	return rawProb*ratio > buyThreshold
}
