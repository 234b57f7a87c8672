package validate

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestValidate_AcceptedRecordShape verifies that any accepted record has the
// readout lengths the overlay uses.
func TestValidate_AcceptedRecordShape(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("accepted records have well-formed fields", prop.ForAll(
		func(clock, altitude, speed, heart, resp string) bool {
			out := Validate(rawFields(clock, altitude, speed, heart, resp))
			if out.Accepted() == (out.Rejection != nil) {
				return false
			}
			if !out.Accepted() {
				return true
			}
			r := out.Record
			return utf8.RuneCountInString(r.HeartRate) == HeartRateLength &&
				utf8.RuneCountInString(r.Respiration) == RespirationLength &&
				utf8.RuneCountInString(r.Speed) >= MinSpeedLength
		},
		gen.OneGenOf(gen.AlphaString(), gen.Const("00:01.000"), gen.Const("-59:59.999")),
		gen.NumString(),
		gen.NumString(),
		gen.OneGenOf(gen.NumString(), gen.Const("123")),
		gen.OneGenOf(gen.NumString(), gen.Const("12")),
	))

	properties.TestingRun(t)
}

// TestParseTimestamp_Rederivation verifies that the offset of an accepted
// record is exactly the formula applied to its clock text.
func TestParseTimestamp_Rederivation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("offset round-trips through the clock text", prop.ForAll(
		func(neg bool, minutes, seconds, millis int) bool {
			ts := Timestamp{Negative: neg, Minutes: minutes, Seconds: seconds, Millis: millis}
			text := ts.String()

			out := Validate(rawFields(text, "1", "1", "123", "12"))
			if !out.Accepted() {
				return false
			}

			want := float64(minutes)*60 + float64(seconds) + float64(millis)*0.001
			if neg {
				want = -want
			}
			return out.Record.TimeOffset == want
		},
		gen.Bool(),
		gen.IntRange(0, 99),
		gen.IntRange(0, 99),
		gen.IntRange(0, 999),
	))

	properties.TestingRun(t)
}

// TestValidate_Deterministic verifies validation is a pure function.
func TestValidate_Deterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same input, same outcome", prop.ForAll(
		func(m, s, ms int, heart string) bool {
			raw := rawFields(fmt.Sprintf("%02d:%02d.%03d", m, s, ms), "1000", "10", heart, "15")
			a, b := Validate(raw), Validate(raw)
			if a.Accepted() != b.Accepted() {
				return false
			}
			if a.Accepted() {
				return *a.Record == *b.Record
			}
			return *a.Rejection == *b.Rejection
		},
		gen.IntRange(0, 99),
		gen.IntRange(0, 99),
		gen.IntRange(0, 999),
		gen.NumString(),
	))

	properties.TestingRun(t)
}
