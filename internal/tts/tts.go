// Package tts synthesizes assistant replies to speech with a content-hash file cache.
package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vuddy-labs/vuddy/internal/config"
)

// MaxTextLength bounds the text sent for synthesis.
const MaxTextLength = 500

// URLPrefix is where synthesized files are served from.
const URLPrefix = "/api/audio/tts/"

// Synthesizer turns text into an audio file.
type Synthesizer interface {
	// Synthesize returns the cached file name for text. An empty name with a
	// nil error means synthesis was skipped.
	Synthesize(ctx context.Context, text string) (string, error)
}

// ElevenLabs synthesizes speech through the ElevenLabs API.
type ElevenLabs struct {
	cfg    config.TTSConfig
	client *http.Client
	logger *slog.Logger
}

// NewElevenLabs creates a synthesizer writing mp3 files into cfg.Dir.
func NewElevenLabs(cfg config.TTSConfig, logger *slog.Logger) *ElevenLabs {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElevenLabs{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Dir returns the cache directory.
func (e *ElevenLabs) Dir() string { return e.cfg.Dir }

// CacheKey derives the file stem for a voice and text pair.
func CacheKey(voiceID, text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(voiceID + normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// Synthesize implements Synthesizer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (string, error) {
	if !e.cfg.Enabled {
		e.logger.Debug("TTS disabled, skipping synthesis")
		return "", nil
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if runes := []rune(text); len(runes) > MaxTextLength {
		text = string(runes[:MaxTextLength])
	}

	filename := CacheKey(e.cfg.VoiceID, text) + ".mp3"
	path := filepath.Join(e.cfg.Dir, filename)
	if _, err := os.Stat(path); err == nil {
		e.logger.Debug("TTS cache hit", "file", filename)
		return filename, nil
	}

	if err := os.MkdirAll(e.cfg.Dir, 0755); err != nil {
		return "", fmt.Errorf("create tts directory: %w", err)
	}
	if e.cfg.APIKey == "" {
		e.logger.Debug("No ElevenLabs API key, text-only reply")
		return "", nil
	}

	audio, err := e.request(ctx, text)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	e.logger.Info("TTS synthesized", "file", filename, "bytes", len(audio))
	return filename, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) request(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       e.cfg.Model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/v1/text-to-speech/" + e.cfg.VoiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs returned empty audio")
	}
	return audio, nil
}

// writeAtomic writes data next to path and renames it into place so readers
// never see a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tts-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
