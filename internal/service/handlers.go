// Package service contains HTTP handler implementations for the operator API endpoints.
// It orchestrates request parsing, calls the underlying business logic in the app package,
// handles errors (including database-specific errors), and writes appropriate HTTP responses.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"store_sim/internal/app"
	"store_sim/internal/catalog"
	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const requestTimeout = 10 * time.Second

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app *app.App
	log *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, l *logger.Logger) *handlers {
	return &handlers{app: app, log: l}
}

// authHandler handles operator authentication requests.
// It reads the request body, unmarshals it into an AuthRequest,
// checks the operator password, and returns a JSON response with a token.
func (handlers *handlers) authHandler(res http.ResponseWriter, req *http.Request) {
	var authRequest models.AuthRequest
	var authResponse models.AuthResponse

	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	if err = json.Unmarshal(requestBody, &authRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	authResponse.Token, err = handlers.app.ProcessAuth(authRequest)
	if err != nil {
		if errors.Is(err, app.ErrMissingPassword) {
			writeErrorResponse(res, "missing password", http.StatusBadRequest)
			return
		}

		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			writeErrorResponse(res, "incorrect password", http.StatusUnauthorized)
			return
		}
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(res, http.StatusOK, authResponse)
}

// productsHandler returns the catalog contents with current and base prices.
func (handlers *handlers) productsHandler(res http.ResponseWriter, req *http.Request) {
	writeJSONResponse(res, http.StatusOK, handlers.app.ProcessProducts())
}

// setPriceHandler processes a shelf price edit for the product named in the URL.
func (handlers *handlers) setPriceHandler(res http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")

	var priceRequest models.PriceUpdateRequest
	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}
	if err = json.Unmarshal(requestBody, &priceRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	err = handlers.app.ProcessSetPrice(name, priceRequest.Price)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProduct) {
			writeErrorResponse(res, "invalid product name provided", http.StatusNotFound)
			return
		}
		if errors.Is(err, catalog.ErrInvalidPrice) {
			writeErrorResponse(res, "price must be positive", http.StatusBadRequest)
			return
		}
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

// queueHandler reports the checkout queue, head first.
func (handlers *handlers) queueHandler(res http.ResponseWriter, req *http.Request) {
	writeJSONResponse(res, http.StatusOK, handlers.app.ProcessQueue())
}

// payHandler confirms the payment of the customer at the head of the queue.
// A repeated confirmation for the same customer maps to a conflict.
func (handlers *handlers) payHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var pgError *pgconn.PgError
	payResponse, err := handlers.app.ProcessPay(ctx)
	if err != nil {
		if errors.Is(err, app.ErrNobodyWaiting) {
			writeErrorResponse(res, "no customer waiting to pay", http.StatusNotFound)
			return
		}

		if errors.Is(err, storage.ErrDuplicateSale) {
			writeErrorResponse(res, "payment already recorded", http.StatusConflict)
			return
		}

		if ok := errors.As(err, &pgError); ok && pgError.Code == pgerrcode.UniqueViolation {
			writeErrorResponse(res, "payment already recorded", http.StatusConflict)
			return
		}

		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(res, http.StatusOK, payResponse)
}

// weatherHandler reports the current simulated weather and game time.
func (handlers *handlers) weatherHandler(res http.ResponseWriter, req *http.Request) {
	writeJSONResponse(res, http.StatusOK, handlers.app.ProcessWeather())
}

// balanceHandler reports the register balance accumulated from sales.
func (handlers *handlers) balanceHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	balance, err := handlers.app.ProcessBalance(ctx)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(res, http.StatusOK, balance)
}

func writeJSONResponse(res http.ResponseWriter, statusCode int, payload any) {
	result, err := json.Marshal(payload)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	res.Write(result)
}

func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo})
}
