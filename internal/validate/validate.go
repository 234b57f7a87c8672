// Package validate checks recognized field text against the shape of the
// overlay readouts and turns accepted frames into records.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/region"
)

// Reason classifies why a frame produced no record.
type Reason string

const (
	ReasonOCRFormatMismatch   Reason = "ocr_format_mismatch"
	ReasonFieldLengthMismatch Reason = "field_length_mismatch"
	ReasonTimestamp           Reason = "timestamp_unparseable"
	ReasonRecognitionFailure  Reason = "recognition_failure"
	ReasonFrameUnreadable     Reason = "frame_unreadable"
)

// Reasons lists every rejection reason in reporting order.
var Reasons = []Reason{
	ReasonOCRFormatMismatch,
	ReasonFieldLengthMismatch,
	ReasonTimestamp,
	ReasonRecognitionFailure,
	ReasonFrameUnreadable,
}

// Expected readout lengths in characters. Speed only needs at least one digit.
const (
	HeartRateLength   = 3
	RespirationLength = 2
	MinSpeedLength    = 1
)

// Record is one accepted frame.
type Record struct {
	// TimeOffset is the on-screen clock in signed seconds.
	TimeOffset  float64 `json:"time_s"`
	Altitude    string  `json:"altitude"`
	Speed       string  `json:"speed"`
	HeartRate   string  `json:"heart_rate"`
	Respiration string  `json:"respiration"`

	FrameIndex  int     `json:"frame"`
	FrameOffset float64 `json:"frame_offset_s"`
}

// Rejection describes a frame that failed validation.
type Rejection struct {
	Reason Reason `json:"reason"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (r *Rejection) Error() string {
	if r.Field == "" {
		return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
	}
	return fmt.Sprintf("%s: field %q: %s", r.Reason, r.Field, r.Detail)
}

// Outcome holds exactly one of Record or Rejection.
type Outcome struct {
	Record    *Record
	Rejection *Rejection
}

// Accepted reports whether the outcome carries a record.
func (o Outcome) Accepted() bool { return o.Record != nil }

// Reject builds a rejected outcome.
func Reject(reason Reason, field, detail string) Outcome {
	return Outcome{Rejection: &Rejection{Reason: reason, Field: field, Detail: detail}}
}

// Validate checks raw against the expected readout shapes. Checks run in a
// fixed order: presence, lengths, then the clock. The frame is accepted only
// if every check passes. Presence only fails for a field absent from raw;
// empty text goes on to the length and clock checks.
func Validate(raw map[string]extract.RawFieldText) Outcome {
	for _, name := range region.RequiredFields {
		if _, ok := raw[name]; !ok {
			return Reject(ReasonOCRFormatMismatch, name, "field missing")
		}
	}

	if n := utf8.RuneCountInString(raw[region.FieldHeartRate].Text); n != HeartRateLength {
		return Reject(ReasonFieldLengthMismatch, region.FieldHeartRate,
			fmt.Sprintf("expected %d characters, got %d", HeartRateLength, n))
	}
	if n := utf8.RuneCountInString(raw[region.FieldRespiration].Text); n != RespirationLength {
		return Reject(ReasonFieldLengthMismatch, region.FieldRespiration,
			fmt.Sprintf("expected %d characters, got %d", RespirationLength, n))
	}
	if n := utf8.RuneCountInString(raw[region.FieldSpeed].Text); n < MinSpeedLength {
		return Reject(ReasonFieldLengthMismatch, region.FieldSpeed,
			fmt.Sprintf("expected at least %d characters, got %d", MinSpeedLength, n))
	}

	ts, err := ParseTimestamp(raw[region.FieldTime].Text)
	if err != nil {
		return Reject(ReasonTimestamp, region.FieldTime, err.Error())
	}

	return Outcome{Record: &Record{
		TimeOffset:  ts.Offset(),
		Altitude:    raw[region.FieldAltitude].Text,
		Speed:       raw[region.FieldSpeed].Text,
		HeartRate:   raw[region.FieldHeartRate].Text,
		Respiration: raw[region.FieldRespiration].Text,
	}}
}

var timestampPattern = regexp.MustCompile(`^(-?)(\d{2}):(\d{2})\.(\d{3})$`)

// Timestamp is the parsed on-screen clock, [-]MM:SS.mmm.
type Timestamp struct {
	Negative bool
	Minutes  int
	Seconds  int
	Millis   int
}

// ParseTimestamp parses s. \d in RE2 only matches ASCII digits.
func ParseTimestamp(s string) (Timestamp, error) {
	m := timestampPattern.FindStringSubmatch(s)
	if m == nil {
		return Timestamp{}, fmt.Errorf("clock %q does not match [-]MM:SS.mmm", s)
	}
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])
	return Timestamp{Negative: m[1] == "-", Minutes: minutes, Seconds: seconds, Millis: millis}, nil
}

// Offset returns the clock in signed seconds.
func (t Timestamp) Offset() float64 {
	v := float64(t.Minutes)*60 + float64(t.Seconds) + float64(t.Millis)*0.001
	if t.Negative {
		return -v
	}
	return v
}

// String renders the timestamp in the overlay's format.
func (t Timestamp) String() string {
	sign := ""
	if t.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%02d:%02d.%03d", sign, t.Minutes, t.Seconds, t.Millis)
}
