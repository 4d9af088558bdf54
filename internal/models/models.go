// Package models defines the data structures used throughout the simulation.
// It includes the product catalog entry, the wire payloads exchanged with the
// external prediction service, and the request and response payloads of the
// operator HTTP API (authentication, price editing, queue and weather views).
package models

import "store_sim/internal/geo"

// Product represents a single catalog entry in the store.
// BasePrice is the reference price fixed when the catalog is loaded and is
// never changed afterward; Price is the current shelf price and may be
// edited by the operator at any time.
type Product struct {
	Name      string  `json:"name" yaml:"name"`
	Price     float64 `json:"price" yaml:"price"`
	BasePrice float64 `json:"base_price" yaml:"-"`
	IsImpulse bool    `json:"is_impulse" yaml:"is_impulse"`
	Cat1      int     `json:"cat1" yaml:"cat1"`
	Cat2      int     `json:"cat2" yaml:"cat2"`
	Cat3      int     `json:"cat3" yaml:"cat3"`
	Stock     int     `json:"stock" yaml:"stock"`
}

// ShoppingList is the ordered sequence of product names one customer intends
// to visit. Order defines both the evaluation order of the decision engine
// and the order the shelves are walked. Builders are expected to dedupe:
// decisions are keyed by product name.
type ShoppingList []string

// PredictRequest is the feature payload sent to the prediction service.
// Field names follow the wire contract of the service and must not change.
type PredictRequest struct {
	Precipitation  float64 `json:"precpt"`
	AvgTemperature float64 `json:"avg_temperature"`
	StockHourCount int     `json:"stock_hour6_22_cnt"`
	HoursStock     int     `json:"hours_stock_status"`
	FirstCategory  int     `json:"first_category_id"`
	SecondCategory int     `json:"second_category_id"`
	ThirdCategory  int     `json:"third_category_id"`
	Impulsiveness  float64 `json:"impulsiveness"`
	Generosity     float64 `json:"generosity"`
	IsImpulse      int     `json:"is_impulse"`
}

// PredictResponse is the prediction service's answer. FinalBuyProb is the
// raw purchase probability in [0,1]; Prediction is a discrete label that is
// logged but takes no part in the buy/skip decision.
type PredictResponse struct {
	FinalBuyProb float64 `json:"final_buy_prob"`
	Prediction   int     `json:"prediction"`
}

// AuthRequest represents the operator authentication request payload.
type AuthRequest struct {
	Password string `json:"password"`
}

// AuthResponse represents the authentication response payload.
// It contains the generated token upon successful authentication.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents a generic error response payload.
// It contains a string describing the encountered error.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

// PriceUpdateRequest is the payload for editing a product's shelf price.
type PriceUpdateRequest struct {
	Price float64 `json:"price"`
}

// QueueEntryView describes one customer currently in the checkout queue,
// as reported by the operator API.
type QueueEntryView struct {
	CustomerID   string   `json:"customer_id"`
	Index        int      `json:"index"`
	Position     geo.Vec3 `json:"position"`
	State        string   `json:"state"`
	TotalCost    float64  `json:"total_cost"`
	WaitingToPay bool     `json:"waiting_to_pay"`
}

// QueueResponse represents the response payload for the queue view endpoint.
type QueueResponse struct {
	Customers []QueueEntryView `json:"customers"`
}

// PayResponse confirms a recorded payment: which customer paid and how much
// was added to the register.
type PayResponse struct {
	CustomerID string  `json:"customer_id"`
	Amount     float64 `json:"amount"`
}

// WeatherResponse reports the current simulated weather and game time.
type WeatherResponse struct {
	Temperature   float64 `json:"temperature"`
	Precipitation float64 `json:"precipitation"`
	Hour          float64 `json:"hour"`
}

// BalanceResponse reports the register balance accumulated from sales.
type BalanceResponse struct {
	Balance float64 `json:"balance"`
}
