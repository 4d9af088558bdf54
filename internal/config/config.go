package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	LogLevel           string
	ServerRunAddress   string
	PredictorURL       string
	PredictorAddress   string
	DatabaseURI        string
	CatalogPath        string
	OperatorPassword   string
	RealSecondsPerHour float64
	QueueSpacing       float64
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	LogLevel = os.Getenv("LOG_LEVEL")
	if LogLevel == "" {
		LogLevel = "info"
	}

	ServerRunAddress = os.Getenv("SERVER_RUN_ADDRESS")
	if ServerRunAddress == "" {
		ServerRunAddress = "0.0.0.0:8080"
	}

	PredictorURL = os.Getenv("PREDICTOR_URL")
	if PredictorURL == "" {
		PredictorURL = "http://127.0.0.1:8000"
	}

	PredictorAddress = os.Getenv("PREDICTOR_RUN_ADDRESS")
	if PredictorAddress == "" {
		PredictorAddress = "0.0.0.0:8000"
	}

	// Empty URI keeps the register ledger in memory.
	DatabaseURI = os.Getenv("DATABASE_URI")

	CatalogPath = os.Getenv("CATALOG_PATH")
	if CatalogPath == "" {
		CatalogPath = "products.yaml"
	}

	OperatorPassword = os.Getenv("OPERATOR_PASSWORD")
	if OperatorPassword == "" {
		OperatorPassword = "password"
	}

	RealSecondsPerHour = getFloat("REAL_SECONDS_PER_HOUR", 10.0)
	QueueSpacing = getFloat("QUEUE_SPACING", 1.5)
}

func getFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("invalid value for %s: %s, using default", key, raw)
		return def
	}
	return value
}
