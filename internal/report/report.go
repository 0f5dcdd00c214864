// Package report renders a session's measurement timeline.
package report

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Sample is one point on the timeline. Lengths are in whatever unit the
// caller chose (pixels or a display unit) and nil when not measured.
type Sample struct {
	Seq           uint64    `json:"seq"`
	At            time.Time `json:"at"`
	ShoulderWidth *float64  `json:"shoulder_width"`
	Height        *float64  `json:"height"`
	PostureScore  *int      `json:"posture_score"`
}

// Options controls chart titles and axis labels.
type Options struct {
	Title string
	// LengthUnit labels the length axis, e.g. "px" or "cm".
	LengthUnit string
}

func (o Options) title() string {
	if o.Title == "" {
		return "Session timeline"
	}
	return o.Title
}

func (o Options) lengthUnit() string {
	if o.LengthUnit == "" {
		return "px"
	}
	return o.LengthUnit
}

// Stat summarises one series. Mean and StdDev are nil when the series has
// no values; StdDev is zero for a single value.
type Stat struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"stddev"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Summary describes a run of samples.
type Summary struct {
	Frames        int  `json:"frames"`
	ShoulderWidth Stat `json:"shoulder_width"`
	Height        Stat `json:"height"`
	PostureScore  Stat `json:"posture_score"`
}

// Summarize computes per-series statistics.
func Summarize(samples []Sample) Summary {
	var shoulders, heights, scores []float64
	for _, s := range samples {
		if s.ShoulderWidth != nil {
			shoulders = append(shoulders, *s.ShoulderWidth)
		}
		if s.Height != nil {
			heights = append(heights, *s.Height)
		}
		if s.PostureScore != nil {
			scores = append(scores, float64(*s.PostureScore))
		}
	}
	return Summary{
		Frames:        len(samples),
		ShoulderWidth: summarize(shoulders),
		Height:        summarize(heights),
		PostureScore:  summarize(scores),
	}
}

func summarize(xs []float64) Stat {
	st := Stat{Count: len(xs)}
	if len(xs) == 0 {
		return st
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	st.Mean, st.StdDev, st.Min, st.Max = &mean, &std, &lo, &hi
	return st
}
