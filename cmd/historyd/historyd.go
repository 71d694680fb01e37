package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sensorboard/config"
	"sensorboard/drivers"
	"sensorboard/logging"
	"sensorboard/store"
	"sensorboard/web/handlers"
)

func main() {
	flags, serialFlags := config.GetHistoryFlags()

	log, err := logging.New(flags.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source drivers.HistorySource
	switch flags.Source {
	case config.File:
		source = drivers.NewFileSource(flags.DataPath)
	case config.Serial:
		serialSource := drivers.NewSerialSource(serialFlags, store.NewHistory(flags.HistorySize), log)
		if err = serialSource.Init(); err != nil {
			log.Fatalf("couldn't init serial source: %s", err)
		}
		go func() {
			if err := serialSource.Run(ctx); err != nil {
				log.Errorf("error reading serial: %s", err)
			}
		}()
		source = serialSource
	default:
		log.Fatalf("unsupported source type: %s", flags.Source)
		return
	}

	go func() {
		log.Infof("serving %s history on %s …", flags.Source, flags.Addr)
		if err := http.ListenAndServe(flags.Addr, handlers.NewHistoryRouter(source, log)); err != nil {
			log.Fatalf("couldn't start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
}
