package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_sim/internal/catalog"
	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/predict/mocks"
)

func testLogger(t *testing.T) *logger.Logger {
	l, err := logger.CreateLogger("error")
	require.NoError(t, err)
	return l
}

func testCatalog(t *testing.T, products ...models.Product) *catalog.Catalog {
	c, err := catalog.New(products, testLogger(t))
	require.NoError(t, err)
	return c
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Delay: time.Millisecond}
}

func TestPriceRatio(t *testing.T) {
	testCases := []struct {
		name      string
		basePrice float64
		price     float64
		expected  float64
	}{
		{name: "price equals base", basePrice: 10, price: 10, expected: 1},
		{name: "discount grows ratio", basePrice: 10, price: 5, expected: 2},
		{name: "markup shrinks ratio", basePrice: 10, price: 20, expected: 0.5},
		{name: "zero price floors at 0.01", basePrice: 10, price: 0, expected: 1000},
		{name: "negative price floors at 0.01", basePrice: 10, price: -3, expected: 1000},
		{name: "unset base falls back to price", basePrice: 0, price: 7, expected: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, PriceRatio(tc.basePrice, tc.price), 1e-9)
		})
	}
}

func TestPriceRatioMonotonic(t *testing.T) {
	// Ratio grows as the shelf price drops and shrinks as it rises.
	base := 10.0
	prev := PriceRatio(base, 100)
	for _, price := range []float64{50, 20, 10, 5, 2, 1, 0.5} {
		cur := PriceRatio(base, price)
		assert.Greater(t, cur, prev, "ratio must grow as price drops from above %v", price)
		prev = cur
	}
}

func TestShouldBuy(t *testing.T) {
	testCases := []struct {
		name     string
		rawProb  float64
		ratio    float64
		expected bool
	}{
		{name: "above threshold", rawProb: 0.6, ratio: 1, expected: true},
		{name: "below threshold", rawProb: 0.4, ratio: 1, expected: false},
		{name: "exactly threshold is a skip", rawProb: 0.5, ratio: 1, expected: false},
		{name: "exactly threshold via ratio is a skip", rawProb: 0.25, ratio: 2, expected: false},
		{name: "ratio pushes adjusted above one", rawProb: 0.6, ratio: 2, expected: true},
		{name: "markup suppresses a confident prediction", rawProb: 0.9, ratio: 0.5, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ShouldBuy(tc.rawProb, tc.ratio))
		})
	}
}

func TestEvaluateListPriceAdjustedDecisions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := testCatalog(t,
		models.Product{Name: "A", Price: 10, Cat1: 1, Cat2: 1, Cat3: 1},
		models.Product{Name: "B", Price: 10, Cat1: 2, Cat2: 2, Cat3: 2},
	)
	// B's base price stays 10 while its shelf price is cut to 5.
	require.NoError(t, cat.SetPrice("B", 5))

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Predict(gomock.Any(), gomock.Any()).
		Return(&models.PredictResponse{FinalBuyProb: 0.6, Prediction: 1}, nil).
		Times(2)

	engine := NewEngine(client, cat, fastPolicy(), testLogger(t))
	eval := engine.EvaluateList(context.Background(), models.ShoppingList{"A", "B"}, Context{})

	select {
	case <-eval.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation did not complete")
	}

	// A: ratio 1, 0.6 > 0.5. B: ratio 2, 1.2 > 0.5 (unclamped).
	assert.True(t, eval.Record().Buy("A"))
	assert.True(t, eval.Record().Buy("B"))
	assert.Equal(t, 2, eval.Record().Len())
}

func TestEvaluateListRetryExhaustion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := testCatalog(t,
		models.Product{Name: "doomed", Price: 5},
		models.Product{Name: "fine", Price: 5},
	)

	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		// Every attempt for the first item fails; exactly 10 are made.
		client.EXPECT().Predict(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection refused")).
			Times(10),
		// The loop then proceeds to the next item.
		client.EXPECT().Predict(gomock.Any(), gomock.Any()).
			Return(&models.PredictResponse{FinalBuyProb: 0.9, Prediction: 1}, nil),
	)

	engine := NewEngine(client, cat, fastPolicy(), testLogger(t))
	eval := engine.EvaluateList(context.Background(), models.ShoppingList{"doomed", "fine"}, Context{})

	select {
	case <-eval.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation hung on a permanently failing item")
	}

	assert.False(t, eval.Record().Buy("doomed"), "exhausted retries must record a skip")
	assert.True(t, eval.Record().Buy("fine"))
}

func TestEvaluateListSequentialOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := testCatalog(t,
		models.Product{Name: "first", Price: 5, Cat1: 1},
		models.Product{Name: "second", Price: 5, Cat1: 2},
		models.Product{Name: "third", Price: 5, Cat1: 3},
	)

	payload := func(cat1 int) models.PredictRequest {
		return models.PredictRequest{
			StockHourCount: 1,
			HoursStock:     1,
			FirstCategory:  cat1,
		}
	}

	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Predict(gomock.Any(), payload(1)).Return(&models.PredictResponse{FinalBuyProb: 1}, nil),
		client.EXPECT().Predict(gomock.Any(), payload(2)).Return(&models.PredictResponse{FinalBuyProb: 1}, nil),
		client.EXPECT().Predict(gomock.Any(), payload(3)).Return(&models.PredictResponse{FinalBuyProb: 1}, nil),
	)

	engine := NewEngine(client, cat, fastPolicy(), testLogger(t))
	eval := engine.EvaluateList(context.Background(), models.ShoppingList{"first", "second", "third"}, Context{})

	select {
	case <-eval.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation did not complete")
	}
}

func TestEvaluateListUnknownItemSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := testCatalog(t, models.Product{Name: "known", Price: 5})

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Predict(gomock.Any(), gomock.Any()).
		Return(&models.PredictResponse{FinalBuyProb: 0.9}, nil)

	engine := NewEngine(client, cat, fastPolicy(), testLogger(t))
	eval := engine.EvaluateList(context.Background(), models.ShoppingList{"ghost", "known"}, Context{})

	select {
	case <-eval.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation did not complete")
	}

	assert.False(t, eval.Record().Buy("ghost"))
	assert.True(t, eval.Record().Buy("known"))
	assert.Equal(t, 1, eval.Record().Len())
}

func TestEvaluateListCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := testCatalog(t, models.Product{Name: "A", Price: 5})

	// A cancelled context must abandon the run before any request goes out.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := mocks.NewMockClient(ctrl)
	engine := NewEngine(client, cat, fastPolicy(), testLogger(t))
	eval := engine.EvaluateList(ctx, models.ShoppingList{"A"}, Context{})

	select {
	case <-eval.Done():
		t.Fatal("cancelled evaluation must not signal completion")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, eval.Record().Len())
}

func TestEvaluateListCancelledDuringRetryDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := testCatalog(t, models.Product{Name: "A", Price: 5})

	ctx, cancel := context.WithCancel(context.Background())

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Predict(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.PredictRequest) (*models.PredictResponse, error) {
			cancel()
			return nil, errors.New("boom")
		})

	engine := NewEngine(client, cat, RetryPolicy{MaxAttempts: 10, Delay: time.Hour}, testLogger(t))
	eval := engine.EvaluateList(ctx, models.ShoppingList{"A"}, Context{})

	// The engine sits in its retry delay when the cancel lands; the run is
	// abandoned instead of sleeping out the hour.
	select {
	case <-eval.Done():
		t.Fatal("cancelled evaluation must not signal completion")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, eval.Record().Len())
}
