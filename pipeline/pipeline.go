// Package pipeline drives one job through the ordered stage sequence:
// convert, transcribe, summarize, export. The runner is the only writer of a
// job's record while the run is in flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"minutesapi/config"
	"minutesapi/job"
	"minutesapi/minutes"
	"minutesapi/transcribe"
)

// Converter normalizes a staged upload into a WAV asset.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (wavPath string, err error)
}

// ResourceChecker is optionally implemented by a converter that can refuse
// work when the host is under pressure.
type ResourceChecker interface {
	CheckResources() error
}

// Transcriber produces ordered transcript segments from a WAV asset.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) ([]transcribe.Segment, error)
}

// Summarizer extracts structured minutes from the full transcript.
type Summarizer interface {
	Summarize(fullText string) (minutes.Minutes, error)
}

// Exporter renders the result into one output format. Exporters fail
// independently of each other.
type Exporter interface {
	Format() string
	Export(ctx context.Context, res *job.Result, dir, basename string) (path string, err error)
}

// minTranscriptLen guards against silent or unintelligible audio.
const minTranscriptLen = 10

type Runner struct {
	cfg         *config.Config
	store       job.Store
	converter   Converter
	transcriber Transcriber
	summarizer  Summarizer
	exporters   []Exporter
}

func NewRunner(cfg *config.Config, store job.Store, conv Converter, tr Transcriber, sum Summarizer, exporters []Exporter) *Runner {
	return &Runner{
		cfg:         cfg,
		store:       store,
		converter:   conv,
		transcriber: tr,
		summarizer:  sum,
		exporters:   exporters,
	}
}

// Run executes the stage sequence for one job and always leaves the record in
// a terminal state. The returned error mirrors the recorded failure.
func (r *Runner) Run(ctx context.Context, id string) error {
	j, err := r.store.Get(id)
	if err != nil {
		return err
	}
	start := time.Now()

	var wavPath string
	defer func() {
		// Intermediate assets are owned by this run; drop them on exit.
		if wavPath != "" {
			os.Remove(wavPath)
		}
		if j.UploadPath != "" {
			os.Remove(j.UploadPath)
		}
	}()

	if rc, ok := r.converter.(ResourceChecker); ok {
		if err := rc.CheckResources(); err != nil {
			return r.fail(id, job.KindInsufficientResources, err.Error())
		}
	}

	// Stage 1: convert
	r.advance(id, job.StateConverting)
	wavPath, err = r.convert(ctx, j.UploadPath)
	if err != nil {
		return r.failClassified(ctx, id, job.KindConversionError, err)
	}

	// Stage 2: transcribe
	r.advance(id, job.StateTranscribing)
	segments, err := r.transcribeStage(ctx, wavPath)
	if err != nil {
		return r.failClassified(ctx, id, job.KindTranscriptionError, err)
	}

	fullText := strings.TrimSpace(transcribe.JoinText(segments))
	if utf8.RuneCountInString(fullText) < minTranscriptLen {
		return r.fail(id, job.KindEmptyTranscript, "no speech detected in audio")
	}

	// Stage 3: summarize
	r.advance(id, job.StateSummarizing)
	if err := ctx.Err(); err != nil {
		return r.failClassified(ctx, id, job.KindSummarizationError, err)
	}
	mins, err := r.summarizer.Summarize(fullText)
	if err != nil {
		return r.failClassified(ctx, id, job.KindSummarizationError, err)
	}

	// Stage 4: export
	r.advance(id, job.StateExporting)
	if err := ctx.Err(); err != nil {
		return r.failClassified(ctx, id, job.KindExportError, err)
	}

	res := &job.Result{
		Summary:        mins.Summary,
		Decisions:      mins.Decisions,
		ActionItems:    mins.ActionItems,
		Deadlines:      mins.Deadlines,
		FullTranscript: fullText,
	}

	exported, exportErrs := r.exportAll(ctx, res, j.SourceFilename)
	if len(exported) == 0 {
		return r.failClassified(ctx, id, job.KindExportError,
			errors.New("all exporters failed: "+joinErrs(exportErrs)))
	}
	for format, err := range exportErrs {
		log.Printf("[job %s] %s export failed: %v", id, format, err)
	}

	res.ExportedFiles = exported
	res.ProcessingTime = fmt.Sprintf("%.2fs", time.Since(start).Seconds())

	_, err = r.store.Update(id, func(j *job.Job) {
		j.Complete(res)
	})
	return err
}

func (r *Runner) convert(ctx context.Context, inputPath string) (string, error) {
	stageCtx, cancel := r.stageContext(ctx)
	defer cancel()
	return r.converter.Convert(stageCtx, inputPath)
}

func (r *Runner) transcribeStage(ctx context.Context, wavPath string) ([]transcribe.Segment, error) {
	stageCtx, cancel := r.stageContext(ctx)
	defer cancel()
	return r.transcriber.Transcribe(stageCtx, wavPath)
}

// exportAll runs every exporter independently; a single failure does not
// abort the others.
func (r *Runner) exportAll(ctx context.Context, res *job.Result, sourceFilename string) (map[string]string, map[string]error) {
	timestamp := time.Now().Format("20060102_150405")
	base := strings.TrimSuffix(sourceFilename, filepath.Ext(sourceFilename))
	basename := fmt.Sprintf("%s_%s", timestamp, base)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		exported = make(map[string]string)
		failed   = make(map[string]error)
	)
	for _, e := range r.exporters {
		wg.Add(1)
		go func(e Exporter) {
			defer wg.Done()
			path, err := e.Export(ctx, res, r.cfg.OutputDir, basename)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[e.Format()] = err
				return
			}
			exported[e.Format()] = path
		}(e)
	}
	wg.Wait()
	return exported, failed
}

func (r *Runner) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.StageTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.StageTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) advance(id string, state job.State) {
	if _, err := r.store.Update(id, func(j *job.Job) {
		j.Advance(state)
	}); err != nil {
		log.Printf("[job %s] could not advance to %s: %v", id, state, err)
	}
}

// failClassified reinterprets cancellation and stage timeouts before
// recording the failure.
func (r *Runner) failClassified(ctx context.Context, id, kind string, err error) error {
	message := err.Error()
	switch {
	case ctx.Err() == context.Canceled:
		kind = job.KindCanceled
		message = "job canceled"
	case errors.Is(err, context.DeadlineExceeded):
		kind = job.KindStageTimeout
		message = fmt.Sprintf("stage timed out after %s", r.cfg.StageTimeout)
	}
	return r.fail(id, kind, message)
}

func (r *Runner) fail(id, kind, message string) error {
	if _, err := r.store.Update(id, func(j *job.Job) {
		j.Fail(kind, message)
	}); err != nil {
		return err
	}
	return fmt.Errorf("%s: %s", kind, message)
}

func joinErrs(errs map[string]error) string {
	parts := make([]string, 0, len(errs))
	for format, err := range errs {
		parts = append(parts, fmt.Sprintf("%s: %v", format, err))
	}
	return strings.Join(parts, "; ")
}
