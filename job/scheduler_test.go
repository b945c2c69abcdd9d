package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minutesapi/config"
)

// mockRunner is a mock implementation of the PipelineRunner interface.
type mockRunner struct {
	store   Store
	runFunc func(ctx context.Context, id string) error
}

func (m *mockRunner) Run(ctx context.Context, id string) error {
	if m.runFunc != nil {
		return m.runFunc(ctx, id)
	}
	// Default behavior: complete immediately.
	_, err := m.store.Update(id, func(j *Job) {
		j.Complete(&Result{Summary: "ok", FullTranscript: "the quick brown fox"})
	})
	return err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MaxConcurrency: 1,
		MaxUploadSize:  10 * 1024 * 1024,
		JobRetention:   time.Hour,
		UploadDir:      t.TempDir(),
		OutputDir:      t.TempDir(),
	}
}

func newTestScheduler(t *testing.T, cfg *config.Config, runFunc func(ctx context.Context, id string) error) (*Scheduler, Store) {
	t.Helper()
	store := NewMemoryStore()
	s, err := NewScheduler(cfg, store, &mockRunner{store: store, runFunc: runFunc})
	require.NoError(t, err)
	return s, store
}

func TestSchedulerSubmit(t *testing.T) {
	t.Run("valid submission is immediately resolvable as queued", func(t *testing.T) {
		s, _ := newTestScheduler(t, testConfig(t), nil)

		j, err := s.Submit(strings.NewReader("fake audio bytes"), "meeting.mp3", 16)
		require.NoError(t, err)
		assert.NotEmpty(t, j.ID)

		st, err := s.Status(j.ID)
		require.NoError(t, err)
		assert.Equal(t, StateQueued, st.State)
		assert.Equal(t, 0, st.Progress)
		assert.Equal(t, "meeting.mp3", st.SourceFilename)

		// The upload is staged on disk before the caller returns.
		_, statErr := os.Stat(j.UploadPath)
		assert.NoError(t, statErr)
	})

	t.Run("rejects unsupported extensions before creating a record", func(t *testing.T) {
		s, store := newTestScheduler(t, testConfig(t), nil)

		_, err := s.Submit(strings.NewReader("not audio"), "notes.txt", 9)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Empty(t, store.List())
	})

	t.Run("rejects oversized payloads before creating a record", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.MaxUploadSize = 10
		s, store := newTestScheduler(t, cfg, nil)

		_, err := s.Submit(strings.NewReader("way more than ten bytes"), "meeting.mp3", 23)
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		assert.Empty(t, store.List())
	})
}

func TestSchedulerProcessing(t *testing.T) {
	t.Run("queued job reaches completed", func(t *testing.T) {
		s, _ := newTestScheduler(t, testConfig(t), nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		j, err := s.Submit(strings.NewReader("fake audio"), "meeting.mp3", 10)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			st, err := s.Status(j.ID)
			return err == nil && st.State == StateCompleted
		}, time.Second, 10*time.Millisecond)

		st, err := s.Status(j.ID)
		require.NoError(t, err)
		assert.NotNil(t, st.Result)
		assert.Empty(t, st.Error)
	})

	t.Run("runner failure leaves the job failed", func(t *testing.T) {
		var store Store
		runFunc := func(ctx context.Context, id string) error {
			_, err := store.Update(id, func(j *Job) {
				j.Fail(KindTranscriptionError, "whisper exploded")
			})
			if err != nil {
				return err
			}
			return errors.New("whisper exploded")
		}
		s, st := newTestScheduler(t, testConfig(t), runFunc)
		store = st
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		j, err := s.Submit(strings.NewReader("fake audio"), "meeting.mp3", 10)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			view, err := s.Status(j.ID)
			return err == nil && view.State == StateFailed
		}, time.Second, 10*time.Millisecond)

		view, err := s.Status(j.ID)
		require.NoError(t, err)
		assert.Equal(t, KindTranscriptionError, view.ErrorKind)
		assert.Equal(t, "whisper exploded", view.Error)
		assert.Nil(t, view.Result)
	})

	t.Run("submission never blocks on a deep backlog", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.MaxConcurrency = 1

		release := make(chan struct{})
		var store Store
		runFunc := func(ctx context.Context, id string) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			_, err := store.Update(id, func(j *Job) {
				j.Complete(&Result{Summary: "ok"})
			})
			return err
		}
		s, st := newTestScheduler(t, cfg, runFunc)
		store = st
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)
		defer close(release)

		// With the single slot occupied, every further submission must still
		// return promptly no matter how deep the backlog grows.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 150; i++ {
				_, err := s.Submit(strings.NewReader("fake audio"), fmt.Sprintf("meeting%d.mp3", i), 10)
				assert.NoError(t, err)
			}
		}()

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("Submit blocked while the backlog was deep")
		}
		assert.Len(t, s.List(), 150)
	})

	t.Run("zero retention does not panic the evict loop", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.JobRetention = 0
		s, _ := newTestScheduler(t, cfg, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		j, err := s.Submit(strings.NewReader("fake audio"), "meeting.mp3", 10)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			st, err := s.Status(j.ID)
			return err == nil && st.State == StateCompleted
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("at most the configured limit runs concurrently", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.MaxConcurrency = 2

		var running, peak atomic.Int32
		var store Store
		runFunc := func(ctx context.Context, id string) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			_, err := store.Update(id, func(j *Job) {
				j.Complete(&Result{Summary: "ok"})
			})
			return err
		}
		s, st := newTestScheduler(t, cfg, runFunc)
		store = st
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		var ids []string
		for i := 0; i < 6; i++ {
			j, err := s.Submit(strings.NewReader("fake audio"), fmt.Sprintf("meeting%d.mp3", i), 10)
			require.NoError(t, err)
			ids = append(ids, j.ID)
		}

		require.Eventually(t, func() bool {
			for _, id := range ids {
				view, err := s.Status(id)
				if err != nil || !view.State.Terminal() {
					return false
				}
			}
			return true
		}, 3*time.Second, 10*time.Millisecond)

		assert.LessOrEqual(t, peak.Load(), int32(2))
	})
}

func TestSchedulerCancel(t *testing.T) {
	t.Run("cancel queued job", func(t *testing.T) {
		cfg := testConfig(t)
		// With zero concurrency the worker loop never picks up a job.
		cfg.MaxConcurrency = 0
		s, _ := newTestScheduler(t, cfg, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		j, err := s.Submit(strings.NewReader("fake audio"), "meeting.mp3", 10)
		require.NoError(t, err)
		require.NoError(t, s.Cancel(j.ID))

		view, err := s.Status(j.ID)
		require.NoError(t, err)
		assert.Equal(t, StateFailed, view.State)
		assert.Equal(t, KindCanceled, view.ErrorKind)
	})

	t.Run("cancel running job", func(t *testing.T) {
		started := make(chan struct{})
		var store Store
		runFunc := func(ctx context.Context, id string) error {
			close(started)
			<-ctx.Done() // Block until canceled
			_, err := store.Update(id, func(j *Job) {
				j.Fail(KindCanceled, "job canceled")
			})
			return err
		}
		s, st := newTestScheduler(t, testConfig(t), runFunc)
		store = st
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		j, err := s.Submit(strings.NewReader("fake audio"), "meeting.mp3", 10)
		require.NoError(t, err)
		<-started

		require.NoError(t, s.Cancel(j.ID))

		require.Eventually(t, func() bool {
			view, err := s.Status(j.ID)
			return err == nil && view.State == StateFailed && view.ErrorKind == KindCanceled
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("cannot cancel a terminal job", func(t *testing.T) {
		s, _ := newTestScheduler(t, testConfig(t), nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		j, err := s.Submit(strings.NewReader("fake audio"), "meeting.mp3", 10)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			view, err := s.Status(j.ID)
			return err == nil && view.State == StateCompleted
		}, time.Second, 10*time.Millisecond)

		err = s.Cancel(j.ID)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cannot cancel job in state: completed")
	})

	t.Run("cancel unknown job", func(t *testing.T) {
		s, _ := newTestScheduler(t, testConfig(t), nil)
		assert.ErrorIs(t, s.Cancel("nope"), ErrNotFound)
	})
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "meeting.mp3", sanitizeFilename("meeting.mp3"))
	assert.Equal(t, "my_meeting_1_.mp3", sanitizeFilename("my meeting (1).mp3"))
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "upload", sanitizeFilename("...."))
}
