// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	_ "net/http/pprof"
)

type Server struct {
	Router    *chi.Mux
	APIRouter *chi.Mux
	Cfg       *ServerConfig
	store     *Store
	settings  *SettingsMgr
	prompts   *PromptLoader
	media     *MediaTool
	pipeline  *Pipeline
	tracker   *ProgressTracker
}

func (s *Server) healthzHandlerFunc(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, true, http.StatusOK)
}

// jsonResponse marshals message and give response with code
//
// Don't add any more content after this since Content-Length is set
func (s *Server) jsonResponse(w http.ResponseWriter, message any, code int) {
	raw, err := json.Marshal(message)
	if err != nil {
		http.Error(w, fmt.Sprintf("{message: \"%s\"}", err), http.StatusInternalServerError)
		slog.Error(err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	_, err = w.Write(raw)
	if err != nil {
		slog.Error("could not write HTTP response", "err", err)
	}
}

// startRun admits and launches a pipeline run in the background.
// Admission and the concurrency bookkeeping happen under one lock;
// the slot is released when the run ends, however it ends.
func (s *Server) startRun(id string, fromStep int) error {
	if _, err := s.store.LoadMetadata(id); err != nil {
		return err
	}
	if err := s.tracker.TryStart(id); err != nil {
		return err
	}
	go func() {
		var runErr error
		defer func() {
			s.tracker.Finish(id, runErr)
		}()
		if fromStep <= 1 {
			runErr = s.pipeline.RunAll(context.Background(), id)
		} else {
			runErr = s.pipeline.RunFrom(context.Background(), id, fromStep)
		}
		if runErr != nil {
			slog.Error("pipeline run failed", "project", id, "err", runErr)
		} else {
			slog.Info("pipeline run completed", "project", id)
		}
	}()
	return nil
}
