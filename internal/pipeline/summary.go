package pipeline

import (
	"encoding/json"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/MeKo-Tech/hudscan/internal/validate"
)

// RunSummary counts the outcomes of a run.
type RunSummary struct {
	Accepted uint
	Rejected uint
	ByReason map[validate.Reason]uint
}

// Add tallies one outcome.
func (s *RunSummary) Add(o validate.Outcome) {
	if o.Accepted() {
		s.Accepted++
		return
	}
	s.Rejected++
	if s.ByReason == nil {
		s.ByReason = make(map[validate.Reason]uint)
	}
	if o.Rejection != nil {
		s.ByReason[o.Rejection.Reason]++
	}
}

// Total is the number of frames processed.
func (s RunSummary) Total() uint { return s.Accepted + s.Rejected }

// Defined reports whether an error rate exists, i.e. any frame was processed.
func (s RunSummary) Defined() bool { return s.Total() > 0 }

// ErrorRate returns rejected/total. ok is false when no frame was processed,
// in which case the rate is undefined and rate is 0.
func (s RunSummary) ErrorRate() (rate float64, ok bool) {
	if !s.Defined() {
		return 0, false
	}
	return float64(s.Rejected) / float64(s.Total()), true
}

// SummaryView is the serialized form of a RunSummary. ErrorRate is nil when
// the rate is undefined.
type SummaryView struct {
	Accepted   uint            `json:"accepted" yaml:"accepted"`
	Rejected   uint            `json:"rejected" yaml:"rejected"`
	Total      uint            `json:"total" yaml:"total"`
	ErrorRate  *float64        `json:"error_rate" yaml:"error_rate"`
	Rejections map[string]uint `json:"rejections_by_reason" yaml:"rejections_by_reason"`
}

// View converts the summary to its serialized form.
func (s RunSummary) View() SummaryView {
	v := SummaryView{
		Accepted:   s.Accepted,
		Rejected:   s.Rejected,
		Total:      s.Total(),
		Rejections: make(map[string]uint, len(s.ByReason)),
	}
	if rate, ok := s.ErrorRate(); ok {
		v.ErrorRate = &rate
	}
	for reason, n := range s.ByReason {
		v.Rejections[string(reason)] = n
	}
	return v
}

// MarshalJSON encodes the summary with a null error rate when undefined.
func (s RunSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.View())
}

// FrameOutcome pairs a frame with its validation outcome.
type FrameOutcome struct {
	Frame   frames.FrameSample
	Outcome validate.Outcome
}

// Result is the output of one run. Records are in frame order.
type Result struct {
	RunID    string
	Records  []validate.Record
	Summary  RunSummary
	Workers  int
	Duration time.Duration
}

// FramesPerSecond is the processing throughput of the run.
func (r *Result) FramesPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Summary.Total()) / r.Duration.Seconds()
}
