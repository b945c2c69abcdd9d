package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

var ErrNotFound = errors.New("job not found")

// Store is the process-wide registry of jobs. Implementations must apply
// mutators atomically so readers never observe a half-applied transition.
type Store interface {
	Create(sourceFilename string) (Job, error)
	Get(id string) (Job, error)
	Update(id string, mutate func(*Job)) (Job, error)
	List() []Job
	Delete(id string)
}

// memoryStore keeps jobs in process memory behind a mutex. Get and List hand
// out snapshot copies; the stored record is only touched under the lock.
type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewMemoryStore() Store {
	return &memoryStore{jobs: make(map[string]*Job)}
}

func (s *memoryStore) Create(sourceFilename string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix())
	if _, exists := s.jobs[id]; exists {
		return Job{}, fmt.Errorf("job id collision: %s", id)
	}

	now := time.Now()
	j := &Job{
		ID:             id,
		State:          StateQueued,
		SourceFilename: sourceFilename,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.jobs[id] = j
	return j.clone(), nil
}

func (s *memoryStore) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j.clone(), nil
}

func (s *memoryStore) Update(id string, mutate func(*Job)) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	mutate(j)
	return j.clone(), nil
}

func (s *memoryStore) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		list = append(list, j.clone())
	}
	return list
}

func (s *memoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}
