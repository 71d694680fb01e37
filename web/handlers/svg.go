package handlers

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"

	"sensorboard/models"
)

// RenderSVG draws the widget's series with its alarms as annotations. Nothing is written to w unless the whole
// chart rendered.
func RenderSVG(w io.Writer, widget *models.ChartWidget) error {
	if len(widget.Values()) < 2 {
		return fmt.Errorf("%w: need at least 2 points, have %d", models.ErrRender, len(widget.Values()))
	}

	annotations := make([]chart.Value2, len(widget.Annotations()))
	for i, a := range widget.Annotations() {
		annotations[i] = chart.Value2{
			XValue: chart.TimeToFloat64(a.Timestamp),
			YValue: a.Value,
			Label:  a.Label,
		}
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name: widget.Title(),
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(0),
			},
			XValues: widget.Labels(),
			YValues: widget.Values(),
		},
	}
	if len(annotations) > 0 {
		series = append(series, chart.AnnotationSeries{Annotations: annotations})
	}

	graph := chart.Chart{
		Title: widget.Title(),
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		Series: series,
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRender, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
