// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package logging

import (
	"fmt"
	"net/http"
)

type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// LogRoutes are the runtime log level endpoints the server mounts.
var LogRoutes = []Route{
	{"GET", "/loglevel", LogLevelGet},
	{"POST", "/loglevel", LogLevelSet},
}

// LogLevelGet reports the current log level.
func LogLevelGet(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, LogLevel())
}

// LogLevelSet sets the loglevel from a posted form.
// Can be triggered like curl -F level=debug <server>/loglevel
func LogLevelSet(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(128)
	if err != nil {
		http.Error(w, "Incorrect form data", http.StatusBadRequest)
		return
	}
	newLevel := r.FormValue("level")
	if err := SetLogLevel(newLevel); err != nil {
		msg := fmt.Sprintf("Incorrect log level %q", newLevel)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, "log level set to %s\n", LogLevel())
}
