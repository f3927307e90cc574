// Package jobs runs fitment resolutions in the background and keeps their
// progress and results for polling.
package jobs

import (
	"sync"
	"time"

	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/report"
)

// Job is one fitment run. All fields are guarded by mu; read them through
// Snapshot.
type Job struct {
	mu sync.Mutex

	id        string
	status    string
	progress  models.JobProgress
	live      *report.MemorySink
	final     *models.FitmentReport
	specs     []models.SpecificationRow
	summary   string
	files     []string
	err       *models.ErrorDetail
	createdAt time.Time
}

func newJob(id string, now time.Time) *Job {
	return &Job{id: id, status: models.JobQueued, createdAt: now}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Status returns the current job status.
func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Snapshot returns the job as the status endpoint shows it. While the job
// runs the report holds the vehicles finished so far.
func (j *Job) Snapshot() models.FitmentStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()

	resp := models.FitmentStatusResponse{
		ID:             j.id,
		Status:         j.status,
		Progress:       j.progress,
		Specifications: j.specs,
		Summary:        j.summary,
		Files:          j.files,
		Error:          j.err,
		CreatedAt:      j.createdAt.Unix(),
	}
	switch {
	case j.final != nil:
		rep := *j.final
		resp.Report = &rep
	case j.live != nil:
		rep := j.live.Report()
		resp.Report = &rep
	}
	return resp
}

func (j *Job) start(live *report.MemorySink) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = models.JobProcessing
	j.live = live
}

func (j *Job) setProgress(p models.JobProgress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = p
}

func (j *Job) finish(rep models.FitmentReport, specs []models.SpecificationRow, summary string, files []string, err *models.ErrorDetail) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.final = &rep
	j.specs = specs
	j.summary = summary
	j.files = files
	j.err = err
	if err != nil {
		j.status = models.JobFailed
	} else {
		j.status = models.JobCompleted
	}
}

func (j *Job) finished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == models.JobCompleted || j.status == models.JobFailed
}

// Store holds all in-flight and completed jobs. Finished jobs older than
// the TTL are swept in the background.
type Store struct {
	jobs sync.Map
	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewStore starts the expiry loop, sweeping every interval.
func NewStore(ttl, interval time.Duration) *Store {
	s := &Store{ttl: ttl, now: time.Now, stop: make(chan struct{})}
	go s.expireLoop(interval)
	return s
}

// Get looks a job up by ID.
func (s *Store) Get(id string) (*Job, bool) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

// Active counts jobs that have not finished.
func (s *Store) Active() int {
	n := 0
	s.jobs.Range(func(_, v any) bool {
		if !v.(*Job).finished() {
			n++
		}
		return true
	})
	return n
}

// Close stops the expiry loop.
func (s *Store) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Store) add(j *Job) {
	s.jobs.Store(j.id, j)
}

func (s *Store) expireLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.stop:
			return
		}
	}
}

// expire drops finished jobs created before the TTL. Running jobs are
// never dropped.
func (s *Store) expire() {
	cutoff := s.now().Add(-s.ttl)
	s.jobs.Range(func(key, value any) bool {
		job := value.(*Job)
		if job.finished() && job.createdAt.Before(cutoff) {
			s.jobs.Delete(key)
		}
		return true
	})
}
