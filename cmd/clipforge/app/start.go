// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipforge/clipforge/internal"
	"github.com/clipforge/clipforge/pkg/logging"
)

// SetupServer sets up router, middleware, and server, given koanf configuration.
func SetupServer(ctx context.Context, cfg *ServerConfig) (*Server, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.SlogMiddleWare(slog.Default()))
	r.Use(middleware.Recoverer)
	r.Use(addVersionAndCORSHeaders)
	r.Use(NewPrometheusMiddleware())

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	if cfg.TimeoutS > 0 {
		r.Use(middleware.Timeout(time.Duration(cfg.TimeoutS) * time.Second))
	}

	// Add prometheus counters
	r.Mount("/metrics", promhttp.Handler())

	a := chi.NewRouter()
	if cfg.MaxRequests > 0 {
		ltrMw := NewIPRequestLimiter("Clipforge-Requests", cfg.MaxRequests,
			time.Duration(cfg.ReqLimitIntS)*time.Second)
		a.Use(ltrMw)
	}
	r.Mount("/api", a)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	settings, err := NewSettingsMgr(store.SettingsPath())
	if err != nil {
		return nil, err
	}
	prompts := NewPromptLoader(cfg.PromptDir)
	media := NewMediaTool(cfg.FFmpegPath, cfg.FFprobePath)
	tracker := NewProgressTracker(cfg.MaxConcurrent)

	server := Server{
		Router:    r,
		APIRouter: a,
		Cfg:       cfg,
		store:     store,
		settings:  settings,
		prompts:   prompts,
		media:     media,
		pipeline:  NewPipeline(store, prompts, media, settings, tracker),
		tracker:   tracker,
	}

	if err := server.Routes(ctx); err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}

	projects, err := store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	slog.Info("projects found", "count", len(projects), "datadir", cfg.DataDir)

	slog.Info("clipforge starting", "version", internal.GetVersion(), "port", cfg.Port)

	return &server, nil
}
