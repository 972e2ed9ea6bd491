package app

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// clipDownloadHandlerFunc streams one generated clip file.
func (s *Server) clipDownloadHandlerFunc(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	clipID := chi.URLParam(r, "clipID")

	var clips []ClipMetadata
	if err := s.store.ReadOutput(projectID, clipsMetadataFile, &clips); err != nil {
		http.Error(w, "no clips generated for this project", http.StatusNotFound)
		return
	}
	for _, c := range clips {
		if c.ID == clipID {
			serveAttachment(w, r, c.FilePath)
			return
		}
	}
	http.Error(w, fmt.Sprintf("clip %s not found", clipID), http.StatusNotFound)
}

// collectionDownloadHandlerFunc streams one generated collection video.
func (s *Server) collectionDownloadHandlerFunc(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	collectionID := chi.URLParam(r, "collectionID")

	var cols []CollectionMetadata
	if err := s.store.ReadOutput(projectID, collectionsMetadataFile, &cols); err != nil {
		http.Error(w, "no collections generated for this project", http.StatusNotFound)
		return
	}
	for _, c := range cols {
		if c.ID == collectionID {
			serveAttachment(w, r, c.FilePath)
			return
		}
	}
	http.Error(w, fmt.Sprintf("collection %s not found", collectionID), http.StatusNotFound)
}

// serveAttachment streams a file with an RFC 6266 filename so CJK
// names survive the download.
func serveAttachment(w http.ResponseWriter, r *http.Request, path string) {
	name := filepath.Base(path)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	http.ServeFile(w, r, path)
}
