package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"minutesapi/config"
)

// Segment is one span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcriber runs whisper.cpp against a normalized WAV asset.
type Transcriber struct {
	bin      string
	model    string
	language string
}

func NewTranscriber(cfg *config.Config) (*Transcriber, error) {
	if _, err := exec.LookPath(cfg.WhisperBin); err != nil {
		return nil, fmt.Errorf("whisper binary not found or not in PATH: %s", cfg.WhisperBin)
	}
	if _, err := os.Stat(cfg.WhisperModel); err != nil {
		return nil, fmt.Errorf("whisper model not found: %s", cfg.WhisperModel)
	}

	return &Transcriber{
		bin:      cfg.WhisperBin,
		model:    cfg.WhisperModel,
		language: cfg.Language,
	}, nil
}

// Preload warms the model file into the page cache so the first job does not
// pay the cold-start read. Meant to be called once at process startup.
func (t *Transcriber) Preload(ctx context.Context) error {
	start := time.Now()
	f, err := os.Open(t.model)
	if err != nil {
		return fmt.Errorf("could not open model for preload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(io.Discard, f); err != nil {
		return fmt.Errorf("model preload failed: %w", err)
	}
	log.Printf("Preloaded whisper model %s in %.2fs", filepath.Base(t.model), time.Since(start).Seconds())
	return nil
}

// whisperOutput mirrors the JSON file whisper.cpp writes with -oj.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs whisper.cpp on the WAV file and returns the ordered
// sequence of recognized segments.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath string) ([]Segment, error) {
	outBase := strings.TrimSuffix(wavPath, filepath.Ext(wavPath))
	jsonPath := outBase + ".json"
	defer os.Remove(jsonPath)

	args := []string{
		"-m", t.model,
		"-f", wavPath,
		"-of", outBase,
		"-oj",
	}
	if lang := strings.TrimSpace(t.language); lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, t.bin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper execution failed: %w", err)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper completed but transcript json is missing: %w", err)
	}
	return parseSegments(raw)
}

func parseSegments(raw []byte) ([]Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("could not parse whisper output: %w", err)
	}

	segments := make([]Segment, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: float64(seg.Offsets.From) / 1000.0,
			End:   float64(seg.Offsets.To) / 1000.0,
			Text:  text,
		})
	}
	return segments, nil
}

// JoinText concatenates segment texts into the full transcript.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
