package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sensorboard/config"
	"sensorboard/drivers"
	"sensorboard/events"
	"sensorboard/logging"
	"sensorboard/metrics"
	"sensorboard/store"
	"sensorboard/web/handlers"
)

func main() {
	flags, pollFlags, dashboardFlags := config.GetFlags()

	log, err := logging.New(flags.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	eventHub := events.NewHub()
	dashboard := store.NewDashboard(store.Options{
		RefreshAlarms: dashboardFlags.RefreshAlarms,
		PruneStale:    dashboardFlags.PruneStale,
	}, eventHub, m, log)

	// Start up the poller
	var driver drivers.Driver = drivers.NewHistoryPoller(pollFlags, dashboard, m, log)
	if err = driver.Init(); err != nil {
		log.Fatalf("couldn't init poller: %s", err)
	}
	go func() {
		if err := driver.Run(ctx); err != nil {
			log.Errorf("error running poller: %s", err)
		}
	}()

	// Initialise UI
	renderer, err := handlers.NewDashboard(dashboard, log)
	if err != nil {
		log.Fatalf("couldn't create dashboard: %v", err)
	}

	// Initialise Server
	server := handlers.NewServer(renderer, eventHub, m, log)
	go func() {
		if err := server.Start(flags.Addr); err != nil {
			log.Fatalf("couldn't start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
}
