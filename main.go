package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/color"

	"speakcheck/internal/config"
	"speakcheck/internal/logging"
	"speakcheck/internal/server"
)

var (
	version = "DEV"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})

	printBanner()

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	hub := server.NewHub(log.With().Str("component", "events").Logger())
	app := NewApp(hub, log)
	services, err := app.startup(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("can't init services")
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Warn().Err(err).Msg("close services")
		}
	}()

	doneCh, err := server.StartWebServer(&server.Data{
		Addr:    cfg.Addr(),
		Backend: app,
		Hub:     hub,
		Ctx:     ctx,
		Log:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't start web server")
	}

	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		log.Info().Msg("Got exit signal")
	case <-doneCh:
		log.Info().Msg("Service exit")
	}
	if err := services.Controller.Stop(ctx); err == nil {
		log.Info().Msg("Stop requested for current session")
	}

	uploadsDone := make(chan struct{})
	go func() {
		services.Controller.Wait()
		close(uploadsDone)
	}()
	select {
	case <-uploadsDone:
		log.Info().Msg("All sessions finished")
	case <-time.After(time.Second * 15):
		log.Warn().Msg("Timeout waiting for uploads")
	}
	cancelFunc()

	select {
	case <-doneCh:
		log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		log.Warn().Msg("Timeout graceful shutdown")
	}
}

func printBanner() {
	banner :=
		`
    SPEAKCHECK v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("speaking assessment companion"))
}
