package app

import (
	"net/http"

	"github.com/clipforge/clipforge/internal"
)

func addVersionAndCORSHeaders(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Clipforge-Version", internal.GetVersion())
		w.Header().Add("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
