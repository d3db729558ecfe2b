package server

import (
	"encoding/json"
	"math"
	"time"

	"github.com/copyleftdev/plutobench/internal/optimization"
)

// DescentRequest is the body of a descent call. P is row-major.
type DescentRequest struct {
	P       [][]float64   `json:"p"`
	Q       []float64     `json:"q"`
	X0      []float64     `json:"x0"`
	Options *OptionsPatch `json:"options,omitempty"`
}

// OptionsPatch overrides individual heavy-ball options; unset fields keep
// the server defaults.
type OptionsPatch struct {
	Alpha   *float64 `json:"alpha,omitempty"`
	Beta    *float64 `json:"beta,omitempty"`
	MaxIter *int     `json:"maxiter,omitempty"`
	Eps     *float64 `json:"eps,omitempty"`
}

// Apply returns base with the set fields replaced.
func (p *OptionsPatch) Apply(base optimization.Options) optimization.Options {
	if p == nil {
		return base
	}
	if p.Alpha != nil {
		base.Alpha = *p.Alpha
	}
	if p.Beta != nil {
		base.Beta = *p.Beta
	}
	if p.MaxIter != nil {
		base.MaxIter = *p.MaxIter
	}
	if p.Eps != nil {
		base.Eps = *p.Eps
	}
	return base
}

// DescentResponse is returned by synchronous descent calls.
type DescentResponse struct {
	optimization.Result
	// Diverged is set when the run left the finite range. Such values are
	// sent as null.
	Diverged  bool                 `json:"diverged"`
	Options   optimization.Options `json:"options"`
	ElapsedMs float64              `json:"elapsed_ms"`
}

// MarshalJSON sends non-finite coordinates and gradient norms as null.
func (r DescentResponse) MarshalJSON() ([]byte, error) {
	type plain DescentResponse
	return json.Marshal(struct {
		plain
		X        []*float64 `json:"x"`
		GradNorm *float64   `json:"grad_norm"`
	}{plain(r), finiteSlice(r.X), finite(r.GradNorm)})
}

// JobStatus is the lifecycle state of a descent job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// JobView is a point-in-time copy of a job for responses.
type JobView struct {
	ID          string               `json:"job_id"`
	Status      JobStatus            `json:"status"`
	Progress    float64              `json:"progress"`
	Iterations  int                  `json:"iterations"`
	GradNorm    float64              `json:"grad_norm"`
	Diverged    bool                 `json:"diverged"`
	Options     optimization.Options `json:"options"`
	StartTime   time.Time            `json:"start_time"`
	EndTime     *time.Time           `json:"end_time,omitempty"`
	LastUpdated time.Time            `json:"last_update"`
	Result      *optimization.Result `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// MarshalJSON sends the non-finite numbers of a diverging job as null.
func (v JobView) MarshalJSON() ([]byte, error) {
	type plain JobView
	out := struct {
		plain
		GradNorm *float64    `json:"grad_norm"`
		Result   interface{} `json:"result,omitempty"`
	}{plain: plain(v), GradNorm: finite(v.GradNorm)}
	if v.Result != nil {
		out.Result = resultWire(v.Result)
	}
	return json.Marshal(out)
}

func resultWire(res *optimization.Result) interface{} {
	type plain optimization.Result
	return struct {
		plain
		X        []*float64 `json:"x"`
		GradNorm *float64   `json:"grad_norm"`
	}{plain(*res), finiteSlice(res.X), finite(res.GradNorm)}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finiteSlice(vs []float64) []*float64 {
	if vs == nil {
		return nil
	}
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = finite(v)
	}
	return out
}

// diverged reports whether res holds values JSON cannot carry.
func diverged(res *optimization.Result) bool {
	if res == nil {
		return false
	}
	if finite(res.GradNorm) == nil {
		return true
	}
	for _, v := range res.X {
		if finite(v) == nil {
			return true
		}
	}
	return false
}
