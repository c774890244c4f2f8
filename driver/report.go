package driver

import (
	"fmt"
	"io"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/google/uuid"
	"github.com/shoe-iot/shoetest/client"
	"github.com/shoe-iot/shoetest/scenario"
)

const (
	maxRecordableLatency = int64(5 * time.Minute / time.Microsecond)
	sigFigs              = 3
)

// Outcome is the result of one step.
type Outcome struct {
	Step     scenario.Step
	Response client.Response
	Err      error
	Start    time.Time
	Latency  time.Duration
}

// Report summarizes a run.
type Report struct {
	ID       uuid.UUID
	Target   string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
	Aborted  bool

	latencies *hdrhistogram.Histogram
}

func newReport(scheme, target string, now time.Time) *Report {
	t := target
	if t != "" {
		t = scheme + "://" + target
	}
	return &Report{
		ID:        uuid.New(),
		Target:    t,
		Started:   now,
		latencies: hdrhistogram.New(1, maxRecordableLatency, sigFigs),
	}
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Err != nil || o.Start.IsZero() {
		return
	}
	v := o.Latency.Microseconds()
	if v < 1 {
		v = 1
	}
	if v > maxRecordableLatency {
		v = maxRecordableLatency
	}
	_ = r.latencies.RecordValue(v)
}

func (r *Report) finish(now time.Time, aborted bool) {
	r.Finished = now
	r.Aborted = aborted
}

// Failed counts the steps whose exchange failed.
func (r *Report) Failed() int {
	var n int
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Latency returns the latency at quantile q (0-100) of the successful exchanges.
func (r *Report) Latency(q float64) time.Duration {
	if r.latencies.TotalCount() == 0 {
		return 0
	}
	return time.Duration(r.latencies.ValueAtQuantile(q)) * time.Microsecond
}

func (r *Report) WriteSummary(w io.Writer) error {
	status := "completed"
	if r.Aborted {
		status = "aborted"
	}
	_, err := fmt.Fprintf(w, "*** run %v %v: %d steps, %d ok, %d failed, p50 %v, max %v, took %v ***\n",
		r.ID, status, len(r.Outcomes), len(r.Outcomes)-r.Failed(), r.Failed(),
		r.Latency(50), r.Latency(100), r.Finished.Sub(r.Started))
	return err
}
