package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"store_sim/internal/checkout"
	"store_sim/internal/decision"
	"store_sim/internal/geo"
	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/storage"

	"go.uber.org/zap"
)

// State names the phases of a customer's visit.
type State string

const (
	StateWalkingIn     State = "WALKING_IN"
	StateBrowsing      State = "BROWSING"
	StateWalkingToTail State = "WALKING_TO_QUEUE_TAIL"
	StateWaitingHead   State = "WAITING_FOR_HEAD"
	StateAtCounter     State = "AT_COUNTER_WAITING_TO_PAY"
	StatePaid          State = "PAID"
	StateLeaving       State = "LEAVING"
	StateGone          State = "GONE"
)

// ErrNotWaitingToPay is returned when a payment is confirmed for a customer
// that is not standing at the counter with an open total.
var ErrNotWaitingToPay = errors.New("sim: customer is not waiting to pay")

// Waypoints are the fixed points of a store visit.
type Waypoints struct {
	Spawn    geo.Vec3
	Sidewalk geo.Vec3
	Entrance geo.Vec3
	Exit     geo.Vec3
}

// CustomerConfig tunes the pacing of a customer session. Tests shrink the
// durations to keep runs fast.
type CustomerConfig struct {
	Waypoints Waypoints
	// Speed is walking speed in world units per second.
	Speed float64
	// InspectMin and InspectMax bound the pause at each shelf.
	InspectMin time.Duration
	InspectMax time.Duration
	// AfterPayPause is the beat between paying and heading for the exit.
	AfterPayPause time.Duration
}

// DefaultCustomerConfig matches the original pacing.
func DefaultCustomerConfig() CustomerConfig {
	return CustomerConfig{
		Waypoints: Waypoints{
			Spawn:    geo.Vec3{X: -10, Z: -10},
			Sidewalk: geo.Vec3{Z: -5},
			Entrance: geo.Vec3{},
			Exit:     geo.Vec3{X: 8, Z: -10},
		},
		Speed:         1.4,
		InspectMin:    500 * time.Millisecond,
		InspectMax:    2 * time.Second,
		AfterPayPause: 1500 * time.Millisecond,
	}
}

// CustomerParams carries everything a customer session needs. All
// collaborators are injected; there are no global lookups.
type CustomerParams struct {
	ID            string
	List          models.ShoppingList
	Impulsiveness float64
	Generosity    float64
	EvalContext   decision.Context

	Engine *decision.Engine
	Lookup decision.ProductLookup
	Queue  *checkout.Queue
	Ledger storage.Ledger

	Config CustomerConfig
	Log    *logger.Logger
	// OnExit, when set, is invoked once after the customer has left.
	OnExit func(id string)
}

// Customer is one shopper's session. Run drives the whole visit; the
// decision engine works in the background while the customer walks in.
type Customer struct {
	params CustomerParams
	rng    *rand.Rand
	log    *logger.Logger

	mu           sync.Mutex
	state        State
	position     geo.Vec3
	target       geo.Vec3
	totalCost    float64
	waitingToPay bool
	paid         bool

	retargeted chan struct{}
	promoted   chan struct{}
	paidCh     chan struct{}

	promoteOnce sync.Once
	paidOnce    sync.Once
}

// NewCustomer creates a customer session ready to Run.
func NewCustomer(params CustomerParams) *Customer {
	return &Customer{
		params:     params,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        params.Log.Component("customer." + params.ID),
		state:      StateWalkingIn,
		position:   params.Config.Waypoints.Spawn,
		retargeted: make(chan struct{}, 1),
		promoted:   make(chan struct{}),
		paidCh:     make(chan struct{}),
	}
}

// ID implements checkout.Member.
func (c *Customer) ID() string { return c.params.ID }

// UpdateTarget implements checkout.Member. It is safe to call repeatedly and
// mid-walk; the session reroutes toward the newest target.
func (c *Customer) UpdateTarget(pos geo.Vec3) {
	c.mu.Lock()
	c.target = pos
	c.mu.Unlock()
	select {
	case c.retargeted <- struct{}{}:
	default:
	}
}

// Promote implements checkout.Member: the customer has reached the head of
// the line.
func (c *Customer) Promote() {
	c.promoteOnce.Do(func() { close(c.promoted) })
}

// State returns the current phase of the visit.
func (c *Customer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TotalCost returns the aggregated cost of the items the customer decided to
// buy. It is zero until browsing finishes and fixed once checkout begins.
func (c *Customer) TotalCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCost
}

// IsWaitingToPay reports whether the customer stands at the counter with an
// open total.
func (c *Customer) IsWaitingToPay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitingToPay
}

// OnPaymentReceived confirms the payment: the total is reported to the
// ledger, the waiting flag clears and the session moves on. Confirming a
// customer that is not at the counter fails with ErrNotWaitingToPay; a
// ledger failure leaves the customer waiting.
func (c *Customer) OnPaymentReceived(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if !c.waitingToPay || c.paid {
		c.mu.Unlock()
		return 0, ErrNotWaitingToPay
	}
	amount := c.totalCost
	c.mu.Unlock()

	if c.params.Ledger == nil {
		c.log.Error("no ledger configured, payment cannot be recorded")
		return 0, errors.New("sim: no ledger configured")
	}
	if err := c.params.Ledger.RecordSale(ctx, c.params.ID, amount); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.waitingToPay = false
	c.paid = true
	c.mu.Unlock()

	c.paidOnce.Do(func() { close(c.paidCh) })
	c.log.Info("payment received", zap.Float64("amount", amount))
	return amount, nil
}

func (c *Customer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.Info("state", zap.String("state", string(s)))
}

// Run drives the visit from the sidewalk to the exit. Cancelling ctx
// abandons the session wherever it is; the customer simply disappears.
func (c *Customer) Run(ctx context.Context) {
	defer func() {
		if c.params.OnExit != nil {
			c.params.OnExit(c.params.ID)
		}
	}()

	// Predictions start now and resolve while the customer is still outside.
	eval := c.params.Engine.EvaluateList(ctx, c.params.List, c.params.EvalContext)

	wp := c.params.Config.Waypoints
	if !c.walkTo(ctx, wp.Sidewalk) || !c.walkTo(ctx, wp.Entrance) {
		return
	}

	c.setState(StateBrowsing)
	select {
	case <-ctx.Done():
		return
	case <-eval.Done():
	}

	total := c.browse(ctx, eval.Record())
	if total < 0 {
		return
	}

	if total == 0 {
		c.log.Info("bought nothing, skipping checkout")
		c.leave(ctx)
		return
	}

	c.mu.Lock()
	c.totalCost = total
	c.mu.Unlock()

	if c.params.Queue == nil {
		// Design gap carried over from the source: without a queue the
		// customer has nowhere to pay and stalls here.
		c.log.Error("no checkout queue configured, customer stuck")
		<-ctx.Done()
		return
	}

	c.setState(StateWalkingToTail)
	tail := c.params.Queue.Join(c)
	if !c.walkTo(ctx, tail) {
		c.params.Queue.Leave(c)
		return
	}

	c.setState(StateWaitingHead)
	select {
	case <-ctx.Done():
		c.params.Queue.Leave(c)
		return
	case <-c.promoted:
	}

	// The line may have compacted while waiting; re-walk to the head slot.
	if !c.walkTo(ctx, c.params.Queue.PositionFor(c.params.ID)) {
		c.params.Queue.Leave(c)
		return
	}

	c.mu.Lock()
	c.waitingToPay = true
	c.mu.Unlock()
	c.setState(StateAtCounter)
	c.log.Info("customer is waiting to pay", zap.Float64("total", total))

	select {
	case <-ctx.Done():
		c.params.Queue.Leave(c)
		return
	case <-c.paidCh:
	}

	c.params.Queue.Leave(c)
	c.setState(StatePaid)
	if !sleep(ctx, c.params.Config.AfterPayPause) {
		return
	}
	c.leave(ctx)
}

// browse walks the shelves in list order, pausing at each one, and sums the
// prices of the items the decision record marks as buys. It returns -1 when
// the context is cancelled mid-browse.
func (c *Customer) browse(ctx context.Context, record *decision.Record) float64 {
	total := 0.0
	for _, name := range c.params.List {
		item, ok := c.params.Lookup.Get(name)
		if !ok {
			continue
		}
		if !sleep(ctx, c.inspectPause()) {
			return -1
		}
		if record.Buy(name) {
			c.log.Info("picked up item",
				zap.String("product", name),
				zap.Float64("price", item.Price),
				zap.Bool("impulse", item.IsImpulse))
			total += item.Price
		} else {
			c.log.Info("skipped item", zap.String("product", name))
		}
	}
	return total
}

func (c *Customer) leave(ctx context.Context) {
	c.setState(StateLeaving)
	c.walkTo(ctx, c.params.Config.Waypoints.Exit)
	c.setState(StateGone)
}

func (c *Customer) inspectPause() time.Duration {
	min, max := c.params.Config.InspectMin, c.params.Config.InspectMax
	if max <= min {
		return min
	}
	return min + time.Duration(c.rng.Int63n(int64(max-min)))
}

// walkTo simulates walking toward pos at the configured speed. A target
// update mid-walk (the queue compacting) reroutes the remaining walk.
// Returns false when ctx is cancelled before arrival.
func (c *Customer) walkTo(ctx context.Context, pos geo.Vec3) bool {
	c.mu.Lock()
	c.target = pos
	c.mu.Unlock()
	select {
	case <-c.retargeted:
	default:
	}
	for {
		c.mu.Lock()
		target := c.target
		dist := c.position.Distance(target)
		c.mu.Unlock()

		speed := c.params.Config.Speed
		if speed <= 0 {
			speed = 1.4
		}
		timer := time.NewTimer(time.Duration(dist / speed * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-c.retargeted:
			timer.Stop()
			continue
		case <-timer.C:
		}

		c.mu.Lock()
		c.position = target
		arrived := target == c.target
		c.mu.Unlock()
		if arrived {
			return true
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
