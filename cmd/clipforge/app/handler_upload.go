package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Upload limits. The video lands on disk streaming, so the limit is
// generous; the memory buffer stays small.
const (
	maxUploadBytes  = 8 << 30 // 8 GiB
	uploadMemBuffer = 32 << 20
)

var allowedVideoExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".flv": true, ".ts": true, ".webm": true,
}

// uploadHandlerFunc creates a project from a multipart form with a
// video_file part, an srt_file part, a project_name, and an optional
// video_category.
func (s *Server) uploadHandlerFunc(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMemBuffer); err != nil {
		http.Error(w, fmt.Sprintf("bad multipart form: %s", err), http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	name := strings.TrimSpace(r.FormValue("project_name"))
	if name == "" {
		http.Error(w, "project_name is required", http.StatusBadRequest)
		return
	}
	category := r.FormValue("video_category")
	if category == "" {
		category = "default"
	}
	if !validCategory(category) {
		http.Error(w, fmt.Sprintf("unknown category %q", category), http.StatusBadRequest)
		return
	}

	video, videoHdr, err := r.FormFile("video_file")
	if err != nil {
		http.Error(w, "video_file part is required", http.StatusBadRequest)
		return
	}
	defer video.Close()
	videoExt := strings.ToLower(filepath.Ext(videoHdr.Filename))
	if !allowedVideoExts[videoExt] {
		http.Error(w, fmt.Sprintf("unsupported video extension %q", videoExt), http.StatusBadRequest)
		return
	}

	sub, subHdr, err := r.FormFile("srt_file")
	if err != nil {
		http.Error(w, "srt_file part is required", http.StatusBadRequest)
		return
	}
	defer sub.Close()
	if strings.ToLower(filepath.Ext(subHdr.Filename)) != ".srt" {
		http.Error(w, "subtitle file must have .srt extension", http.StatusBadRequest)
		return
	}

	meta, err := s.store.CreateProject(name, category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rawDir := s.store.RawDir(meta.ProjectID)
	videoPath := filepath.Join(rawDir, "source"+videoExt)
	videoSize, err := saveUpload(video, videoPath)
	if err == nil {
		_, err = saveUpload(sub, filepath.Join(rawDir, "source.srt"))
	}
	if err != nil {
		// A half-created project is useless, clean it up.
		if delErr := s.store.DeleteProject(meta.ProjectID); delErr != nil {
			slog.Error("could not remove project after failed upload",
				"project", meta.ProjectID, "err", delErr)
		}
		http.Error(w, fmt.Sprintf("store upload: %s", err), http.StatusInternalServerError)
		return
	}

	meta.FileInfo.VideoPath = videoPath
	meta.FileInfo.SrtPath = filepath.Join(rawDir, "source.srt")
	meta.FileInfo.VideoSize = videoSize
	if err := s.store.SaveMetadata(meta); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("project created", "project", meta.ProjectID, "name", name,
		"category", category, "videoSize", videoSize)
	s.jsonResponse(w, meta, http.StatusCreated)
}

func saveUpload(src io.Reader, dst string) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}
	return n, nil
}
