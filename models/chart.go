package models

import (
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	AlarmGlyph        = "🔔"
	AlarmMarkerRadius = 15
)

// Annotation is a marker overlaid on a chart at a single point.
type Annotation struct {
	Timestamp time.Time
	Value     float64
	Label     string
	Radius    int
}

// ChartWidget is the chart state for one channel. Labels and values always have the same length.
type ChartWidget struct {
	// key is the channel id and doubles as the chart's identity in the page.
	key string
	// labels are the x-axis timestamps of the series.
	labels []time.Time
	// values are the y values of the series, index aligned with labels.
	values []float64
	// annotations are the alarm markers.
	annotations []Annotation
	// version goes up on every change so views know to redraw.
	version uint64
}

// NewChartWidget builds the chart for a channel seen for the first time.
func NewChartWidget(key string, snapshot *ChannelSnapshot) (*ChartWidget, error) {
	if err := validateSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("%w: channel %s: %v", ErrRender, key, err)
	}
	c := &ChartWidget{key: key, version: 1}
	c.setSeries(snapshot)
	c.setAnnotations(snapshot)
	return c, nil
}

// Update replaces the series with the snapshot's values. Annotations are only rebuilt when refreshAlarms is set.
// An invalid snapshot leaves the widget untouched.
func (c *ChartWidget) Update(snapshot *ChannelSnapshot, refreshAlarms bool) error {
	if err := validateSnapshot(snapshot); err != nil {
		return fmt.Errorf("%w: channel %s: %v", ErrRender, c.key, err)
	}
	c.setSeries(snapshot)
	if refreshAlarms {
		c.setAnnotations(snapshot)
	}
	c.version++
	return nil
}

func (c *ChartWidget) Key() string {
	return c.key
}

func (c *ChartWidget) Title() string {
	return "Sensor " + c.key
}

func (c *ChartWidget) Labels() []time.Time {
	return c.labels
}

func (c *ChartWidget) Values() []float64 {
	return c.values
}

func (c *ChartWidget) Annotations() []Annotation {
	return c.annotations
}

func (c *ChartWidget) Version() uint64 {
	return c.version
}

// Clone returns a deep copy that is safe to read while the original keeps being updated.
func (c *ChartWidget) Clone() *ChartWidget {
	return &ChartWidget{
		key:         c.key,
		labels:      slices.Clone(c.labels),
		values:      slices.Clone(c.values),
		annotations: slices.Clone(c.annotations),
		version:     c.version,
	}
}

func (c *ChartWidget) setSeries(snapshot *ChannelSnapshot) {
	c.labels = make([]time.Time, len(snapshot.Values))
	c.values = make([]float64, len(snapshot.Values))
	for i, point := range snapshot.Values {
		c.labels[i] = point.Timestamp.Time
		c.values[i] = point.Value
	}
}

func (c *ChartWidget) setAnnotations(snapshot *ChannelSnapshot) {
	c.annotations = make([]Annotation, len(snapshot.Alarms))
	for i, alarm := range snapshot.Alarms {
		c.annotations[i] = Annotation{
			Timestamp: alarm.Timestamp.Time,
			Value:     alarm.Value,
			Label:     AlarmGlyph,
			Radius:    AlarmMarkerRadius,
		}
	}
}

func validateSnapshot(snapshot *ChannelSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("no snapshot")
	}
	for i, point := range snapshot.Values {
		if err := validatePoint(point.Timestamp, point.Value); err != nil {
			return fmt.Errorf("values[%d]: %w", i, err)
		}
	}
	for i, alarm := range snapshot.Alarms {
		if err := validatePoint(alarm.Timestamp, alarm.Value); err != nil {
			return fmt.Errorf("alarms[%d]: %w", i, err)
		}
	}
	return nil
}

func validatePoint(timestamp Timestamp, value float64) error {
	if timestamp.IsZero() {
		return fmt.Errorf("zero timestamp")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("non-finite value %v", value)
	}
	return nil
}
