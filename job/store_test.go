package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Run("create assigns unique ids and queued state", func(t *testing.T) {
		store := NewMemoryStore()

		a, err := store.Create("meeting.mp3")
		require.NoError(t, err)
		b, err := store.Create("standup.wav")
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, StateQueued, a.State)
		assert.Equal(t, "meeting.mp3", a.SourceFilename)
		assert.False(t, a.CreatedAt.IsZero())
	})

	t.Run("get returns not found for unknown ids", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.Get("nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update applies mutators atomically", func(t *testing.T) {
		store := NewMemoryStore()
		j, err := store.Create("meeting.mp3")
		require.NoError(t, err)

		updated, err := store.Update(j.ID, func(j *Job) {
			j.Advance(StateConverting)
		})
		require.NoError(t, err)
		assert.Equal(t, StateConverting, updated.State)
		assert.Equal(t, 20, updated.Progress)

		got, err := store.Get(j.ID)
		require.NoError(t, err)
		assert.Equal(t, StateConverting, got.State)

		_, err = store.Update("nope", func(j *Job) {})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get hands out snapshots", func(t *testing.T) {
		store := NewMemoryStore()
		j, err := store.Create("meeting.mp3")
		require.NoError(t, err)

		_, err = store.Update(j.ID, func(j *Job) {
			j.Complete(&Result{Summary: "done", Decisions: []string{"ship it"}})
		})
		require.NoError(t, err)

		snap, err := store.Get(j.ID)
		require.NoError(t, err)
		snap.Result.Summary = "tampered"
		snap.Result.Decisions[0] = "tampered"

		fresh, err := store.Get(j.ID)
		require.NoError(t, err)
		assert.Equal(t, "done", fresh.Result.Summary)
		assert.Equal(t, "ship it", fresh.Result.Decisions[0])
	})

	t.Run("list and delete", func(t *testing.T) {
		store := NewMemoryStore()
		j, err := store.Create("meeting.mp3")
		require.NoError(t, err)
		_, err = store.Create("standup.wav")
		require.NoError(t, err)

		assert.Len(t, store.List(), 2)

		store.Delete(j.ID)
		assert.Len(t, store.List(), 1)
		_, err = store.Get(j.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
