package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"store_sim/internal/app"
	"store_sim/internal/catalog"
	"store_sim/internal/checkout"
	"store_sim/internal/config"
	"store_sim/internal/decision"
	"store_sim/internal/geo"
	"store_sim/internal/pkg/logger"
	"store_sim/internal/predict"
	"store_sim/internal/service"
	"store_sim/internal/sim"
	"store_sim/internal/storage"
	"store_sim/internal/weather"
	"syscall"
	"time"
)

func main() {
	var l *logger.Logger
	var err error
	if l, err = logger.CreateLogger(config.LogLevel); err != nil {
		log.Fatal("Failed to create logger:", err)
	}

	var ledger storage.Ledger
	if config.DatabaseURI != "" {
		ledger, err = storage.NewPostgreSQL(config.DatabaseURI, l)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		l.Info("no DATABASE_URI configured, keeping the register ledger in memory")
		ledger = storage.NewMemory()
	}
	defer ledger.Close()

	cat, err := catalog.Load(config.CatalogPath, l)
	if err != nil {
		log.Fatal(err)
	}

	simCtx, simStop := context.WithCancel(context.Background())
	defer simStop()

	clock := sim.NewClock(sim.OpeningHour, config.RealSecondsPerHour)
	weatherManager := weather.NewManager(clock, weather.DefaultConfig(), l.Component("weather"))
	go weatherManager.Run(simCtx)

	directionAnchor := geo.Vec3{X: 10, Z: 1}
	queue := checkout.NewQueue(checkout.Config{
		Start:           geo.Vec3{X: 10, Z: 5},
		DirectionAnchor: &directionAnchor,
		Spacing:         config.QueueSpacing,
	}, l.Component("checkout"))

	client := predict.NewHTTPClient(config.PredictorURL, l)
	engine := decision.NewEngine(client, cat, decision.DefaultRetryPolicy(), l.Component("decision"))

	spawner := sim.NewSpawner(cat, engine, queue, ledger, weatherManager, clock, sim.DefaultSpawnerConfig(), l)
	go spawner.Run(simCtx)

	appInstance := app.NewApp(cat, queue, weatherManager, clock, ledger, config.OperatorPassword, l)
	serviceInstance := service.NewService(appInstance, config.ServerRunAddress, l)

	const readHeaderTimeout = 5 * time.Second
	server := &http.Server{Addr: config.ServerRunAddress, Handler: serviceInstance.NewRouter(), ReadHeaderTimeout: readHeaderTimeout}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		const shutdownTimeout = 30 * time.Second
		shutdownCtx, cancel := context.WithTimeout(serverCtx, shutdownTimeout)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		// Stop spawning and abandon in-flight customer sessions first,
		// then drain the HTTP server.
		simStop()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		defer ledger.Close()
		log.Fatal(err)
	}

	<-serverCtx.Done()
}
