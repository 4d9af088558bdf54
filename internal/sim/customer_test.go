package sim

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_sim/internal/catalog"
	"store_sim/internal/checkout"
	"store_sim/internal/decision"
	"store_sim/internal/geo"
	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/predict"
	"store_sim/internal/storage"
)

func testLogger(t *testing.T) *logger.Logger {
	l, err := logger.CreateLogger("error")
	require.NoError(t, err)
	return l
}

// predictorStub answers every request with a fixed probability.
func predictorStub(t *testing.T, prob float64) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predict", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.PredictResponse{FinalBuyProb: prob, Prediction: 1})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func fastCustomerConfig() CustomerConfig {
	return CustomerConfig{
		Waypoints: Waypoints{
			Spawn:    geo.Vec3{X: -1},
			Sidewalk: geo.Vec3{X: -0.5},
			Entrance: geo.Vec3{},
			Exit:     geo.Vec3{X: 1},
		},
		Speed:         1000,
		InspectMin:    time.Millisecond,
		InspectMax:    2 * time.Millisecond,
		AfterPayPause: time.Millisecond,
	}
}

func testQueue(t *testing.T, l *logger.Logger) *checkout.Queue {
	return checkout.NewQueue(checkout.Config{Start: geo.Vec3{X: 10, Z: 5}, Spacing: 1.5}, l)
}

// Full visit: two listed items, service says 0.6 for both, one item is at a
// discounted shelf price. Both get bought, the customer queues, pays 15 and
// leaves.
func TestCustomerFullVisit(t *testing.T) {
	l := testLogger(t)
	ts := predictorStub(t, 0.6)

	cat, err := catalog.New([]models.Product{
		{Name: "A", Price: 10, Cat1: 1, Cat2: 1, Cat3: 1},
		{Name: "B", Price: 10, Cat1: 2, Cat2: 2, Cat3: 2},
	}, l)
	require.NoError(t, err)
	require.NoError(t, cat.SetPrice("B", 5))

	client := predict.NewHTTPClient(ts.URL, l)
	engine := decision.NewEngine(client, cat, decision.RetryPolicy{MaxAttempts: 10, Delay: time.Millisecond}, l)
	queue := testQueue(t, l)
	ledger := storage.NewMemory()

	exited := make(chan string, 1)
	c := NewCustomer(CustomerParams{
		ID:            "visitor-1",
		List:          models.ShoppingList{"A", "B"},
		Impulsiveness: 0.5,
		Generosity:    0.5,
		EvalContext:   decision.Context{Temperature: 20},
		Engine:        engine,
		Lookup:        cat,
		Queue:         queue,
		Ledger:        ledger,
		Config:        fastCustomerConfig(),
		Log:           l,
		OnExit:        func(id string) { exited <- id },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return c.State() == StateAtCounter }, 5*time.Second, 5*time.Millisecond)

	// A: ratio 1, 0.6 > 0.5 buys. B: ratio 2, 1.2 > 0.5 buys. Total 10+5.
	assert.Equal(t, 15.0, c.TotalCost())
	assert.True(t, c.IsWaitingToPay())
	require.NotNil(t, queue.Head())
	assert.Equal(t, "visitor-1", queue.Head().ID())

	amount, err := c.OnPaymentReceived(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, amount)
	assert.False(t, c.IsWaitingToPay())

	// A second confirmation must not double-book.
	_, err = c.OnPaymentReceived(context.Background())
	assert.ErrorIs(t, err, ErrNotWaitingToPay)

	select {
	case id := <-exited:
		assert.Equal(t, "visitor-1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("customer never left the store")
	}
	assert.Equal(t, StateGone, c.State())
	assert.Zero(t, queue.Len())

	balance, err := ledger.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, balance)
}

// A customer whose every decision is a skip never goes near the till.
func TestCustomerBuysNothing(t *testing.T) {
	l := testLogger(t)
	ts := predictorStub(t, 0.1)

	cat, err := catalog.New([]models.Product{{Name: "A", Price: 10}}, l)
	require.NoError(t, err)

	client := predict.NewHTTPClient(ts.URL, l)
	engine := decision.NewEngine(client, cat, decision.RetryPolicy{MaxAttempts: 10, Delay: time.Millisecond}, l)
	queue := testQueue(t, l)

	exited := make(chan string, 1)
	c := NewCustomer(CustomerParams{
		ID:          "visitor-2",
		List:        models.ShoppingList{"A"},
		EvalContext: decision.Context{},
		Engine:      engine,
		Lookup:      cat,
		Queue:       queue,
		Ledger:      storage.NewMemory(),
		Config:      fastCustomerConfig(),
		Log:         l,
		OnExit:      func(id string) { exited <- id },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("customer never left the store")
	}
	assert.Equal(t, StateGone, c.State())
	assert.Zero(t, c.TotalCost())
	assert.Zero(t, queue.Len())
}

// Two customers in line: the first pays and leaves, the second is promoted,
// re-walks to the head slot and ends up waiting to pay.
func TestCustomersQueueInOrder(t *testing.T) {
	l := testLogger(t)
	ts := predictorStub(t, 0.9)

	cat, err := catalog.New([]models.Product{{Name: "A", Price: 10}}, l)
	require.NoError(t, err)

	client := predict.NewHTTPClient(ts.URL, l)
	engine := decision.NewEngine(client, cat, decision.RetryPolicy{MaxAttempts: 10, Delay: time.Millisecond}, l)
	queue := testQueue(t, l)
	ledger := storage.NewMemory()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spawn := func(id string) *Customer {
		c := NewCustomer(CustomerParams{
			ID:          id,
			List:        models.ShoppingList{"A"},
			EvalContext: decision.Context{},
			Engine:      engine,
			Lookup:      cat,
			Queue:       queue,
			Ledger:      ledger,
			Config:      fastCustomerConfig(),
			Log:         l,
		})
		go c.Run(ctx)
		return c
	}

	first := spawn("first")
	require.Eventually(t, func() bool { return first.State() == StateAtCounter }, 5*time.Second, 5*time.Millisecond)

	second := spawn("second")
	require.Eventually(t, func() bool { return queue.IndexOf("second") != checkout.NotInQueue }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, queue.IndexOf("second"))
	assert.False(t, second.IsWaitingToPay())

	_, err = first.OnPaymentReceived(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return second.State() == StateAtCounter }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, queue.IndexOf("second"))
	assert.True(t, second.IsWaitingToPay())

	_, err = second.OnPaymentReceived(context.Background())
	require.NoError(t, err)

	balance, err := ledger.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, balance)
}

// Payment confirmation without a recordable sale leaves the customer waiting.
func TestPaymentFailsWithoutLedgerEntry(t *testing.T) {
	l := testLogger(t)
	ts := predictorStub(t, 0.9)

	cat, err := catalog.New([]models.Product{{Name: "A", Price: 10}}, l)
	require.NoError(t, err)

	client := predict.NewHTTPClient(ts.URL, l)
	engine := decision.NewEngine(client, cat, decision.RetryPolicy{MaxAttempts: 10, Delay: time.Millisecond}, l)
	queue := testQueue(t, l)
	ledger := storage.NewMemory()
	// Pre-book the ID so the real confirmation collides.
	require.NoError(t, ledger.RecordSale(context.Background(), "visitor-3", 1))

	c := NewCustomer(CustomerParams{
		ID:          "visitor-3",
		List:        models.ShoppingList{"A"},
		EvalContext: decision.Context{},
		Engine:      engine,
		Lookup:      cat,
		Queue:       queue,
		Ledger:      ledger,
		Config:      fastCustomerConfig(),
		Log:         l,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return c.State() == StateAtCounter }, 5*time.Second, 5*time.Millisecond)

	_, err = c.OnPaymentReceived(context.Background())
	assert.ErrorIs(t, err, storage.ErrDuplicateSale)
	assert.True(t, c.IsWaitingToPay(), "a failed booking keeps the customer at the counter")
}
