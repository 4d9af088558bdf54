// Package predictor implements a stand-in for the external purchase
// prediction service. The original backs this endpoint with two neural nets:
// one scoring general demand from weather and category features, one
// adjusting that score for the individual shopper's personality. The stub
// reproduces the same two-stage shape with a deterministic heuristic so the
// whole simulation runs without the real model server.
package predictor

import (
	"encoding/json"
	"math"
	"net/http"

	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Score computes the buy probability for one feature payload.
func Score(req models.PredictRequest) models.PredictResponse {
	// Stage one: base demand from store and weather features.
	catSignal := float64((req.FirstCategory*7+req.SecondCategory*13+req.ThirdCategory*3)%11)/11.0 - 0.5
	base := sigmoid(0.03*(req.AvgTemperature-10) - 0.9*req.Precipitation + catSignal)

	// Stage two: personality adjustment.
	adjusted := base * (0.6 + 0.4*req.Generosity)
	if req.IsImpulse != 0 {
		adjusted += 0.25 * req.Impulsiveness
	}
	adjusted = math.Max(0, math.Min(1, adjusted))

	label := 0
	if adjusted > 0.5 {
		label = 1
	}
	return models.PredictResponse{FinalBuyProb: adjusted, Prediction: label}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Server exposes the prediction endpoint over HTTP.
type Server struct {
	log *logger.Logger
}

// NewServer creates the predictor HTTP facade.
func NewServer(l *logger.Logger) *Server {
	return &Server{log: l}
}

// NewRouter builds the predictor's router: the prediction endpoint plus a
// liveness probe.
func (s *Server) NewRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(s.log.WithLogging())
	router.Post("/predict", s.predictHandler)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return router
}

func (s *Server) predictHandler(res http.ResponseWriter, req *http.Request) {
	var input models.PredictRequest
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		res.Header().Set("Content-Type", "application/json")
		res.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(res).Encode(models.ErrorResponse{Errors: "invalid json"})
		return
	}

	result := Score(input)
	s.log.Info("prediction served",
		zap.Float64("temperature", input.AvgTemperature),
		zap.Float64("precipitation", input.Precipitation),
		zap.Int("is_impulse", input.IsImpulse),
		zap.Float64("final_buy_prob", result.FinalBuyProb),
		zap.Int("prediction", result.Prediction))

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusOK)
	json.NewEncoder(res).Encode(result)
}
