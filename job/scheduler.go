package job

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"minutesapi/config"
)

// PipelineRunner executes the full stage sequence for one job. The runner owns
// all state transitions for that job, including the terminal ones.
type PipelineRunner interface {
	Run(ctx context.Context, jobID string) error
}

// allowedExtensions is the upload allow-list.
var allowedExtensions = map[string]bool{
	"mp3": true, "wav": true, "ogg": true, "flac": true, "m4a": true, "mp4": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Scheduler accepts submissions, stages uploads, and dispatches pipeline runs
// without blocking the caller. Concurrent runs are bounded by a semaphore;
// jobs beyond the bound stay queued until a slot frees. Admission is
// unbounded: once validation passes, Submit returns regardless of backlog
// depth.
type Scheduler struct {
	cfg    *config.Config
	store  Store
	runner PipelineRunner
	sem    *semaphore.Weighted

	mu      sync.Mutex
	pending []string
	wake    chan struct{}
}

func NewScheduler(cfg *config.Config, store Store, runner PipelineRunner) (*Scheduler, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create upload directory: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}

	return &Scheduler{
		cfg:    cfg,
		store:  store,
		runner: runner,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		wake:   make(chan struct{}, 1),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) {
	log.Println("Scheduler started. Concurrency limit:", s.cfg.MaxConcurrency)
	go s.workerLoop(ctx)
	go s.evictLoop(ctx)
}

// Submit validates the upload, stages it, and enqueues a new job. The returned
// job is already resolvable via Status before the pipeline has started.
func (s *Scheduler) Submit(r io.Reader, filename string, size int64) (Job, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !allowedExtensions[ext] {
		return Job{}, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	if size > s.cfg.MaxUploadSize {
		return Job{}, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, size, s.cfg.MaxUploadSize)
	}

	safeName := sanitizeFilename(filename)
	j, err := s.store.Create(safeName)
	if err != nil {
		return Job{}, err
	}

	uploadPath := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", j.ID, safeName))
	if err := s.stageUpload(r, uploadPath); err != nil {
		// Staging failed before any pipeline work started, so the submission
		// as a whole fails and the record is withdrawn.
		s.store.Delete(j.ID)
		return Job{}, fmt.Errorf("failed to stage upload: %w", err)
	}

	j, err = s.store.Update(j.ID, func(j *Job) {
		j.UploadPath = uploadPath
	})
	if err != nil {
		return Job{}, err
	}

	s.enqueue(j.ID)
	log.Printf("[job %s] submitted (%s, %d bytes)", j.ID, safeName, size)
	return j, nil
}

func (s *Scheduler) enqueue(id string) {
	s.mu.Lock()
	s.pending = append(s.pending, id)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return "", false
	}
	id := s.pending[0]
	s.pending = s.pending[1:]
	return id, true
}

func (s *Scheduler) stageUpload(r io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	limited := &io.LimitedReader{R: r, N: s.cfg.MaxUploadSize + 1}
	written, err := io.Copy(f, limited)
	if err != nil {
		os.Remove(path)
		return err
	}
	if written > s.cfg.MaxUploadSize {
		os.Remove(path)
		return ErrPayloadTooLarge
	}
	return f.Close()
}

// workerLoop pulls pending jobs and dispatches one pipeline run per job,
// bounded by the concurrency semaphore.
func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		id, ok := s.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				log.Println("Worker loop shutting down.")
				return
			case <-s.wake:
				continue
			}
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			log.Println("Worker loop shutting down.")
			return
		}
		go func(id string) {
			defer s.sem.Release(1)
			s.process(ctx, id)
		}(id)
	}
}

// process runs the pipeline for one queued job.
func (s *Scheduler) process(parentCtx context.Context, id string) {
	j, err := s.store.Get(id)
	if err != nil {
		log.Printf("[job %s] vanished before processing: %v", id, err)
		return
	}
	// Canceled while still in the queue.
	if j.State.Terminal() {
		return
	}

	jobCtx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if _, err := s.store.Update(id, func(j *Job) {
		j.cancelFunc = cancel
		j.StartedAt = time.Now()
	}); err != nil {
		return
	}

	log.Printf("[job %s] processing started", id)
	if err := s.runner.Run(jobCtx, id); err != nil {
		log.Printf("[job %s] pipeline failed: %v", id, err)
		return
	}
	log.Printf("[job %s] pipeline finished", id)
}

// evictLoop removes terminal jobs and their exported files once they outlive
// the retention window.
func (s *Scheduler) evictLoop(ctx context.Context) {
	interval := s.cfg.JobRetention / 4 // Check 4 times per lifetime
	if interval < time.Second {
		// NewTicker panics on non-positive intervals; a misconfigured
		// retention must not take the process down.
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Evict loop shutting down.")
			return
		case <-ticker.C:
			for _, j := range s.store.List() {
				if !j.State.Terminal() || time.Since(j.CompletedAt) <= s.cfg.JobRetention {
					continue
				}
				if j.Result != nil {
					for _, path := range j.Result.ExportedFiles {
						log.Printf("[job %s] cleaning up old export: %s", j.ID, path)
						os.Remove(path)
					}
				}
				if j.UploadPath != "" {
					os.Remove(j.UploadPath)
				}
				s.store.Delete(j.ID)
			}
		}
	}
}

// Cancel aborts a queued or running job.
func (s *Scheduler) Cancel(id string) error {
	j, err := s.store.Get(id)
	if err != nil {
		return err
	}

	switch {
	case j.State.Terminal():
		return fmt.Errorf("cannot cancel job in state: %s", j.State)
	case j.State == StateQueued:
		_, err := s.store.Update(id, func(j *Job) {
			j.Fail(KindCanceled, "Canceled by user while in queue")
		})
		if err != nil {
			return err
		}
		log.Printf("[job %s] canceled while queued", id)
		return nil
	default:
		var cancel context.CancelFunc
		if _, err := s.store.Update(id, func(j *Job) {
			cancel = j.cancelFunc
		}); err != nil {
			return err
		}
		if cancel == nil {
			return fmt.Errorf("job %s is processing but has no cancellation handle", id)
		}
		cancel()
		log.Printf("[job %s] cancellation signal sent", id)
		return nil
	}
}

// Status projects a job into its client-facing view.
func (s *Scheduler) Status(id string) (Status, error) {
	j, err := s.store.Get(id)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(j), nil
}

// List returns the status views of all known jobs.
func (s *Scheduler) List() []Status {
	jobs := s.store.List()
	views := make([]Status, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, StatusOf(j))
	}
	return views
}

// FilePath resolves an exported file name to its on-disk path.
func (s *Scheduler) FilePath(filename string) (string, error) {
	// Security: Prevent path traversal
	cleanFilename := filepath.Base(filename)
	if cleanFilename != filename {
		return "", fmt.Errorf("invalid filename")
	}

	fullPath := filepath.Join(s.cfg.OutputDir, cleanFilename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found")
	}
	return fullPath, nil
}

func sanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	safe := unsafeFilenameChars.ReplaceAllString(base, "_")
	safe = strings.Trim(safe, "._")
	if safe == "" {
		safe = "upload"
	}
	return safe
}
