package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/copyleftdev/plutobench/internal/errors"
	"github.com/copyleftdev/plutobench/internal/optimization"
	"github.com/copyleftdev/plutobench/internal/optimization/gradient"
	"github.com/copyleftdev/plutobench/internal/optimization/quadratic"
)

// job tracks one asynchronous descent. Fields are guarded by Server.jobsMu.
type job struct {
	id          string
	status      JobStatus
	opts        optimization.Options
	startTime   time.Time
	endTime     *time.Time
	lastUpdated time.Time
	iterations  int
	gradNorm    float64
	result      *optimization.Result
	err         string
	cancel      context.CancelFunc
}

func (j *job) view() JobView {
	v := JobView{
		ID:          j.id,
		Status:      j.status,
		Iterations:  j.iterations,
		GradNorm:    j.gradNorm,
		Options:     j.opts,
		StartTime:   j.startTime,
		LastUpdated: j.lastUpdated,
		Result:      j.result,
		Error:       j.err,
		Diverged:    finite(j.gradNorm) == nil || diverged(j.result),
	}
	if j.endTime != nil {
		end := *j.endTime
		v.EndTime = &end
	}
	switch {
	case j.status == JobCompleted:
		v.Progress = 1
	case j.opts.MaxIter > 0:
		v.Progress = float64(j.iterations) / float64(j.opts.MaxIter)
	}
	return v
}

var jobSeq atomic.Uint64

func newJobID() string {
	return fmt.Sprintf("job_%d_%d", time.Now().UnixNano(), jobSeq.Add(1))
}

// startJob validates the problem, registers a pending job and runs it in
// the background.
func (s *Server) startJob(req *DescentRequest) (JobView, error) {
	prob, opts, err := s.prepare(req)
	if err != nil {
		return JobView{}, err
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	s.pruneLocked(time.Now())
	if active := s.countLocked(JobPending) + s.countLocked(JobRunning); active >= s.cfg.Optimization.MaxJobs {
		s.metrics.ObserveFailure("too_many_jobs")
		return JobView{}, apperrors.Errorf("%d jobs already active", active).
			WithOperation("start job").WithStatus(http.StatusTooManyRequests)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	j := &job{
		id:          newJobID(),
		status:      JobPending,
		opts:        opts,
		startTime:   now,
		lastUpdated: now,
		cancel:      cancel,
	}
	s.jobs[j.id] = j
	s.publishJobsLocked()

	s.wg.Add(1)
	go s.runJob(ctx, j, prob)

	s.logger.Info("Descent job started", map[string]interface{}{
		"job_id":  j.id,
		"dims":    prob.Dims(),
		"options": opts.String(),
	})
	return j.view(), nil
}

func (s *Server) runJob(ctx context.Context, j *job, prob *quadratic.Problem) {
	defer s.wg.Done()
	defer j.cancel()

	s.jobsMu.Lock()
	if j.status != JobPending {
		// Cancelled before it got going.
		s.jobsMu.Unlock()
		return
	}
	j.status = JobRunning
	j.lastUpdated = time.Now()
	s.publishJobsLocked()
	s.jobsMu.Unlock()

	hb := gradient.New(
		gradient.WithLogger(s.zap.With(zap.String("job_id", j.id))),
		gradient.WithProgress(func(it optimization.Iteration, _ mat.Vector) {
			s.jobsMu.Lock()
			j.iterations = it.Index
			j.gradNorm = it.GradNorm
			j.lastUpdated = time.Now()
			s.jobsMu.Unlock()
		}),
	)

	start := time.Now()
	res, err := hb.Minimize(ctx, prob.P, prob.Q, prob.X0, j.opts)
	elapsed := time.Since(start)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	j.lastUpdated = now
	if j.status == JobCancelled {
		return
	}
	j.endTime = &now

	switch {
	case errors.Is(err, context.Canceled):
		j.status = JobCancelled
	case err != nil:
		j.status = JobFailed
		j.err = err.Error()
		s.metrics.ObserveFailure("job_error")
		s.logger.Error("Descent job failed", map[string]interface{}{
			"job_id": j.id,
			"error":  err,
		})
	default:
		j.status = JobCompleted
		j.result = res
		j.iterations = res.Iterations
		j.gradNorm = res.GradNorm
		s.metrics.ObserveRun(res, elapsed)
		s.logger.Info("Descent job completed", map[string]interface{}{
			"job_id":     j.id,
			"iterations": res.Iterations,
			"converged":  res.Converged,
		})
	}
	s.publishJobsLocked()
}

// jobStatus returns a snapshot of the job.
func (s *Server) jobStatus(id string) (JobView, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return JobView{}, errJobNotFound(id)
	}
	return j.view(), nil
}

// cancelJob stops a pending or running job. Terminal jobs cannot be cancelled.
func (s *Server) cancelJob(id string) (JobView, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return JobView{}, errJobNotFound(id)
	}
	if j.status.Terminal() {
		return JobView{}, apperrors.Errorf("cannot cancel job with status: %s", j.status).
			WithOperation("cancel job").WithStatus(http.StatusConflict)
	}

	j.cancel()
	now := time.Now()
	j.status = JobCancelled
	j.endTime = &now
	j.lastUpdated = now
	s.publishJobsLocked()

	s.logger.Info("Descent job cancelled", map[string]interface{}{"job_id": id})
	return j.view(), nil
}

func errJobNotFound(id string) error {
	return apperrors.Errorf("job %s not found", id).WithStatus(http.StatusNotFound)
}

// pruneLocked drops terminal jobs that ended more than JobTTL ago.
func (s *Server) pruneLocked(now time.Time) {
	ttl := s.cfg.Optimization.JobTTL
	if ttl <= 0 {
		return
	}
	for id, j := range s.jobs {
		if j.status.Terminal() && j.endTime != nil && now.Sub(*j.endTime) > ttl {
			delete(s.jobs, id)
		}
	}
}

func (s *Server) countLocked(status JobStatus) int {
	n := 0
	for _, j := range s.jobs {
		if j.status == status {
			n++
		}
	}
	return n
}

func (s *Server) publishJobsLocked() {
	for _, st := range []JobStatus{JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled} {
		s.metrics.SetJobs(string(st), s.countLocked(st))
	}
}
