package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-chi/chi/v5"
)

var audioNamePattern = regexp.MustCompile(`^[a-f0-9]{16}\.mp3$`)

// AudioHandler serves synthesized speech files from the cache directory.
type AudioHandler struct {
	dir string
}

// NewAudioHandler creates an audio handler over dir.
func NewAudioHandler(dir string) *AudioHandler {
	return &AudioHandler{dir: dir}
}

// RegisterRoutes registers the audio route.
func (h *AudioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/audio/tts/{filename}", h.Serve)
}

// Serve streams a cached file with byte-range support.
func (h *AudioHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !audioNamePattern.MatchString(name) {
		Error(w, http.StatusNotFound, "audio not found")
		return
	}

	f, err := os.Open(filepath.Join(h.dir, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("Failed to open audio file", "error", err, "file", name)
		}
		Error(w, http.StatusNotFound, "audio not found")
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("Failed to close audio file", "error", closeErr, "file", name)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to read audio")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
