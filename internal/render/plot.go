package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	chartrender "github.com/go-echarts/go-echarts/v2/render"

	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
)

const (
	plotWidth  = "100%"
	plotHeight = "500px"
)

// ErrNoSeries is returned when a plot is requested without any series.
var ErrNoSeries = errors.New("no series to plot")

// Series is one statistic's per-tree trace along the sequence.
type Series struct {
	Name    string
	Records []branchstats.TreeRecord
}

// TracePlot writes an HTML line chart with one line per series. The x axis
// is the left coordinate of each tree, taken from the first series; every
// series must come from the same tree sequence.
func TracePlot(w io.Writer, title string, series ...Series) error {
	if len(series) == 0 {
		return ErrNoSeries
	}

	labels := make([]string, len(series[0].Records))
	for i, rec := range series[0].Records {
		labels[i] = strconv.FormatFloat(rec.Left, 'g', -1, 64)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: plotWidth, Height: plotHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle(series[0])}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Position"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Counted length"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(labels)

	for _, s := range series {
		data := make([]opts.LineData, len(s.Records))
		for i, rec := range s.Records {
			data[i] = opts.LineData{Value: rec.Value}
		}

		line.AddSeries(s.Name, data, charts.WithLineChartOpts(opts.LineChart{Step: "start"}))
	}

	return chartrender.NewChartRender(line, line.Validate).Render(w)
}

func subtitle(s Series) string {
	sum := Summarize(s.Records)

	return fmt.Sprintf("%d trees, %s between %.4g and %.4g, mean %.4g",
		sum.Trees, s.Name, sum.Min, sum.Max, sum.Mean)
}
