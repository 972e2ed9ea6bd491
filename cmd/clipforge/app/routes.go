// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"

	"github.com/clipforge/clipforge/pkg/logging"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes defines dispatches for all routes.
func (s *Server) Routes(ctx context.Context) error {
	for _, route := range logging.LogRoutes {
		s.Router.MethodFunc(route.Method, route.Path, route.Handler)
	}
	s.Router.Mount("/debug", middleware.Profiler())
	s.Router.MethodFunc("GET", "/healthz", s.healthzHandlerFunc)

	// File transfer endpoints stay plain chi handlers; everything else
	// under /api is registered through the typed API.
	s.APIRouter.MethodFunc("POST", "/projects/upload", s.uploadHandlerFunc)
	s.APIRouter.MethodFunc("GET", "/projects/{id}/clips/{clipID}/download", s.clipDownloadHandlerFunc)
	s.APIRouter.MethodFunc("GET", "/projects/{id}/collections/{collectionID}/download", s.collectionDownloadHandlerFunc)
	s.APIRouter.Group(createRouteAPI(s))

	return nil
}
