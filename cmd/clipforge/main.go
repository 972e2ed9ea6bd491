package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipforge/clipforge/cmd/clipforge/app"
	"github.com/clipforge/clipforge/pkg/logging"
)

const (
	gracefulShutdownWait = 2 * time.Second
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := app.LoadConfig(os.Args, cwd)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err.Error())
		return 1
	}

	if err := logging.InitSlog(cfg.LogLevel, cfg.LogFormat); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %s\n", err.Error())
		return 1
	}

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	startIssue := make(chan struct{}, 1)
	stopServer := make(chan struct{}, 1)

	ctx, cancelBkg := context.WithCancel(context.Background())

	go func() {
		select {
		case <-startIssue:
		case <-stopSignal:
		}
		cancelBkg()
		stopServer <- struct{}{}
	}()

	server, err := app.SetupServer(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error setting up server: %s\n", err.Error())
		return 1
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", server.Cfg.Port),
		Handler: server.Router,
	}

	go func() {
		var err error
		if cfg.CertPath != "" && cfg.KeyPath != "" { // HTTPS
			err = srv.ListenAndServeTLS(cfg.CertPath, cfg.KeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "err", err)
			exitCode = 1
			startIssue <- struct{}{}
		}
	}()

	<-stopServer // Wait here for stop signal
	slog.Info("Server to be stopped")

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		slog.Info("Server stopped")
		cancelTimeout()
		time.Sleep(gracefulShutdownWait)
	}()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Server shutdown failed", "err", err)
	}
	return exitCode
}
