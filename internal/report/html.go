package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an interactive page with two line charts: body lengths
// and posture score, both indexed by frame sequence. Unmeasured frames
// leave gaps.
func RenderHTML(w io.Writer, samples []Sample, o Options) error {
	xs := make([]string, 0, len(samples))
	shoulders := make([]opts.LineData, 0, len(samples))
	heights := make([]opts.LineData, 0, len(samples))
	scores := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		xs = append(xs, strconv.FormatUint(s.Seq, 10))
		shoulders = append(shoulders, lineValue(s.ShoulderWidth))
		heights = append(heights, lineValue(s.Height))
		if s.PostureScore != nil {
			scores = append(scores, opts.LineData{Value: *s.PostureScore})
		} else {
			scores = append(scores, opts.LineData{Value: nil})
		}
	}

	sum := Summarize(samples)
	unit := o.lengthUnit()

	lengths := charts.NewLine()
	lengths.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.title(), Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Body measurements", Subtitle: fmt.Sprintf("frames=%d measured=%d", sum.Frames, sum.Height.Count)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit, NameLocation: "middle", NameGap: 40}),
	)
	lengths.SetXAxis(xs).
		AddSeries("shoulder width", shoulders).
		AddSeries("height", heights)

	posture := charts.NewLine()
	posture.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Posture score", Subtitle: fmt.Sprintf("scored=%d", sum.PostureScore.Count)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "score", Min: 0, Max: 100}),
	)
	posture.SetXAxis(xs).
		AddSeries("posture", scores, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#35b779"}))

	page := components.NewPage()
	page.PageTitle = o.title()
	page.AddCharts(lengths, posture)
	return page.Render(w)
}

func lineValue(v *float64) opts.LineData {
	if v == nil {
		return opts.LineData{Value: nil}
	}
	return opts.LineData{Value: *v}
}
