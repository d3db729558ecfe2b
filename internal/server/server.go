package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/plutobench/internal/config"
	apperrors "github.com/copyleftdev/plutobench/internal/errors"
	"github.com/copyleftdev/plutobench/internal/launcher"
	"github.com/copyleftdev/plutobench/internal/logging"
	"github.com/copyleftdev/plutobench/internal/metrics"
	"github.com/copyleftdev/plutobench/internal/optimization"
	"github.com/copyleftdev/plutobench/internal/optimization/gradient"
	"github.com/copyleftdev/plutobench/internal/optimization/quadratic"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server serves launch descriptors and runs heavy-ball descents, either
// inline or as cancellable background jobs.
type Server struct {
	cfg     *config.Config
	logger  Logger
	zap     *zap.Logger
	metrics *metrics.Recorder

	jobs   map[string]*job
	jobsMu sync.RWMutex // Protects jobs and every job's fields
	wg     sync.WaitGroup
}

// NewServer creates a server. A nil recorder gets a private one.
func NewServer(cfg *config.Config, logger *logging.Logger, rec *metrics.Recorder) *Server {
	if rec == nil {
		rec = metrics.New()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		zap:     logging.NewZapLogger(logger).Named("heavyball"),
		metrics: rec,
		jobs:    make(map[string]*job),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/launcher", s.handleLauncher)
		r.Get("/launcher/command", s.handleLauncherCommand)
		r.Post("/descend", s.handleDescend)
		r.Post("/jobs", s.handleJobStart)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Delete("/jobs/{id}", s.handleJobCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// describe returns a fresh launch descriptor and flags its auth settings.
func (s *Server) describe() launcher.Descriptor {
	d := launcher.PlutoServer()
	s.metrics.DescriptorServed()
	if d.Insecure() {
		s.logger.Warn("Launch descriptor disables notebook authentication on all interfaces", map[string]interface{}{
			"title": d.LauncherEntry.Title,
		})
	}
	return d
}

// prepare turns a request into a validated problem and merged options.
func (s *Server) prepare(req *DescentRequest) (*quadratic.Problem, optimization.Options, error) {
	if req == nil {
		return nil, optimization.Options{}, apperrors.New("request body is required").WithStatus(http.StatusBadRequest)
	}
	if n := len(req.Q); n > s.cfg.Optimization.MaxDims {
		s.metrics.ObserveFailure("too_large")
		return nil, optimization.Options{}, apperrors.Errorf("problem has %d dimensions, limit is %d", n, s.cfg.Optimization.MaxDims).
			WithStatus(http.StatusRequestEntityTooLarge)
	}

	prob, err := quadratic.New(req.P, req.Q, req.X0)
	if err != nil {
		s.metrics.ObserveFailure("dimension_mismatch")
		return nil, optimization.Options{}, apperrors.Wrap(err, "invalid problem").WithStatus(http.StatusBadRequest)
	}

	opts := req.Options.Apply(s.cfg.DescentOptions())
	if err := opts.Validate(); err != nil {
		s.metrics.ObserveFailure("invalid_options")
		return nil, optimization.Options{}, apperrors.Wrap(err, "invalid options").WithStatus(http.StatusBadRequest)
	}
	return prob, opts, nil
}

// descend runs a descent inline on the request goroutine.
func (s *Server) descend(r *http.Request, req *DescentRequest) (*DescentResponse, error) {
	prob, opts, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	hb := gradient.New(gradient.WithLogger(s.zap))
	start := time.Now()
	res, err := hb.Minimize(r.Context(), prob.P, prob.Q, prob.X0, opts)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveFailure("aborted")
		return nil, apperrors.Wrap(err, "descent aborted").WithStatus(http.StatusServiceUnavailable)
	}
	s.metrics.ObserveRun(res, elapsed)

	logging.FromContext(r.Context()).Debug("Descent finished", map[string]interface{}{
		"iterations": res.Iterations,
		"converged":  res.Converged,
		"grad_norm":  res.GradNorm,
	})

	return &DescentResponse{
		Result:    *res,
		Diverged:  diverged(res),
		Options:   opts,
		ElapsedMs: float64(elapsed.Microseconds()) / 1000.0,
	}, nil
}

// Close cancels every running job and waits for them to stop.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	for _, j := range s.jobs {
		if !j.status.Terminal() {
			j.cancel()
		}
	}
	s.jobsMu.Unlock()

	s.wg.Wait()
	return nil
}

// bytesPerValue bounds the encoded size of one matrix or vector entry.
const bytesPerValue = 32

// bodyLimit is the largest request body accepted: an n×n matrix plus two
// vectors at OPT_MAX_DIMS, and room for options and the RPC envelope.
func (s *Server) bodyLimit() int64 {
	n := int64(s.cfg.Optimization.MaxDims)
	return n*(n+2)*bytesPerValue + 4096
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.bodyLimit()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.ObserveFailure("too_large")
			return apperrors.Errorf("request body exceeds %d bytes", tooLarge.Limit).
				WithStatus(http.StatusRequestEntityTooLarge)
		}
		return apperrors.Wrap(err, "invalid request body").WithStatus(http.StatusBadRequest)
	}
	return nil
}

// writeJSON answers 500 when v cannot be encoded.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		apperrors.WriteJSON(w, apperrors.Wrap(err, "failed to encode response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
