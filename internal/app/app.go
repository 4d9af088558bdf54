// Package app provides the core application logic behind the operator API.
// It handles operator authentication, price editing, queue inspection,
// payment confirmation, and weather and register balance reporting.
// All simulation collaborators (catalog, checkout queue, weather manager,
// ledger) are injected at construction; there are no global lookups.
package app

import (
	"context"
	"errors"

	"store_sim/internal/catalog"
	"store_sim/internal/checkout"
	"store_sim/internal/models"
	"store_sim/internal/pkg/auth"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/pkg/security"
	"store_sim/internal/sim"
	"store_sim/internal/storage"
	"store_sim/internal/weather"
)

// Predefined errors for operator requests.
var (
	// ErrMissingPassword indicates that no password was provided.
	ErrMissingPassword = errors.New("app: missing password")
	// ErrNobodyWaiting indicates that no customer is at the counter ready to pay.
	ErrNobodyWaiting = errors.New("app: no customer waiting to pay")
)

// PayingCustomer is the slice of a customer session the payment flow needs.
// *sim.Customer satisfies it.
type PayingCustomer interface {
	ID() string
	State() sim.State
	TotalCost() float64
	IsWaitingToPay() bool
	OnPaymentReceived(ctx context.Context) (float64, error)
}

// App encapsulates the application logic and dependencies required to process requests.
type App struct {
	catalog      *catalog.Catalog
	queue        *checkout.Queue
	weather      *weather.Manager
	clock        *sim.Clock
	ledger       storage.Ledger
	passwordHash string
	log          *logger.Logger
}

// NewApp creates and returns a new instance of App with the provided dependencies.
// The operator password is stored hashed.
func NewApp(cat *catalog.Catalog, queue *checkout.Queue, wm *weather.Manager,
	clock *sim.Clock, ledger storage.Ledger, operatorPassword string, log *logger.Logger) *App {
	return &App{
		catalog:      cat,
		queue:        queue,
		weather:      wm,
		clock:        clock,
		ledger:       ledger,
		passwordHash: security.HashPassword(operatorPassword),
		log:          log,
	}
}

// ProcessAuth checks the operator password and generates a token.
func (app *App) ProcessAuth(req models.AuthRequest) (string, error) {
	if req.Password == "" {
		return "", ErrMissingPassword
	}
	if err := security.CheckPassword(app.passwordHash, req.Password); err != nil {
		return "", err
	}
	return auth.GenerateToken()
}

// ProcessProducts returns the current catalog contents.
func (app *App) ProcessProducts() []models.Product {
	return app.catalog.List()
}

// ProcessSetPrice applies a shelf price edit.
func (app *App) ProcessSetPrice(name string, price float64) error {
	return app.catalog.SetPrice(name, price)
}

// ProcessQueue reports the waiting line, head first, with each customer's
// index, target position and session state.
func (app *App) ProcessQueue() models.QueueResponse {
	members := app.queue.Members()
	resp := models.QueueResponse{Customers: make([]models.QueueEntryView, 0, len(members))}
	for i, m := range members {
		view := models.QueueEntryView{
			CustomerID: m.ID(),
			Index:      i,
			Position:   app.queue.PositionFor(m.ID()),
		}
		if c, ok := m.(PayingCustomer); ok {
			view.State = string(c.State())
			view.TotalCost = c.TotalCost()
			view.WaitingToPay = c.IsWaitingToPay()
		}
		resp.Customers = append(resp.Customers, view)
	}
	return resp
}

// ProcessPay confirms the payment of the customer at the head of the queue.
// The customer must already be at the counter with the waiting flag set;
// otherwise ErrNobodyWaiting is returned.
func (app *App) ProcessPay(ctx context.Context) (models.PayResponse, error) {
	head := app.queue.Head()
	if head == nil {
		return models.PayResponse{}, ErrNobodyWaiting
	}
	customer, ok := head.(PayingCustomer)
	if !ok || !customer.IsWaitingToPay() {
		return models.PayResponse{}, ErrNobodyWaiting
	}

	amount, err := customer.OnPaymentReceived(ctx)
	if err != nil {
		if errors.Is(err, sim.ErrNotWaitingToPay) {
			return models.PayResponse{}, ErrNobodyWaiting
		}
		return models.PayResponse{}, err
	}
	return models.PayResponse{CustomerID: customer.ID(), Amount: amount}, nil
}

// ProcessWeather reports the current simulated conditions and game hour.
func (app *App) ProcessWeather() models.WeatherResponse {
	temperature, precipitation := app.weather.Snapshot()
	return models.WeatherResponse{
		Temperature:   temperature,
		Precipitation: precipitation,
		Hour:          app.clock.Hour(),
	}
}

// ProcessBalance reports the register balance accumulated from sales.
func (app *App) ProcessBalance(ctx context.Context) (models.BalanceResponse, error) {
	balance, err := app.ledger.Balance(ctx)
	if err != nil {
		return models.BalanceResponse{}, err
	}
	return models.BalanceResponse{Balance: balance}, nil
}
