package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sensorboard/events"
	"sensorboard/metrics"
	"sensorboard/models"
)

func decode(t *testing.T, body string) models.HistoryResponse {
	t.Helper()
	response, err := models.DecodeHistory(strings.NewReader(body))
	require.NoError(t, err)
	return response
}

func newTestDashboard(t *testing.T, options Options) *Dashboard {
	return NewDashboard(options, events.NewHub(), metrics.New(), zaptest.NewLogger(t).Sugar())
}

func TestApplyCreatesThenReuses(t *testing.T) {
	d := newTestDashboard(t, Options{})

	result, err := d.Apply(1, decode(t, `{"A": {"values": [{"timestamp": 0, "value": 1}], "alarms": []}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, result.Created)

	d.mu.RLock()
	first, _ := d.registry.Get("A")
	d.mu.RUnlock()

	result, err = d.Apply(2, decode(t, `{"A": {"values": [{"timestamp": 1, "value": 2}], "alarms": []}}`))
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, []string{"A"}, result.Updated)

	d.mu.RLock()
	second, _ := d.registry.Get("A")
	d.mu.RUnlock()
	assert.Same(t, first, second)
	assert.Equal(t, 1, d.Len())
}

func TestApplyIsIdempotent(t *testing.T) {
	d := newTestDashboard(t, Options{RefreshAlarms: true})
	body := `{"A": {"values": [{"timestamp": 0, "value": 1}, {"timestamp": 1, "value": 2}], "alarms": [{"timestamp": 5, "value": 9}]}}`

	_, err := d.Apply(1, decode(t, body))
	require.NoError(t, err)
	_, err = d.Apply(2, decode(t, body))
	require.NoError(t, err)

	widget, ok := d.Widget("A")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, widget.Values())
	assert.Len(t, widget.Labels(), 2)
	assert.Len(t, widget.Annotations(), 1)
}

func TestApplyAlarmMarker(t *testing.T) {
	d := newTestDashboard(t, Options{})

	_, err := d.Apply(1, decode(t, `{"A": {"values": [], "alarms": [{"timestamp": 5, "value": 9}]}}`))
	require.NoError(t, err)

	widget, _ := d.Widget("A")
	require.Len(t, widget.Annotations(), 1)
	assert.Equal(t, int64(5), widget.Annotations()[0].Timestamp.UnixMilli())
	assert.Equal(t, 9.0, widget.Annotations()[0].Value)
}

func TestApplyAlarmRefresh(t *testing.T) {
	first := `{"A": {"values": [], "alarms": [{"timestamp": 5, "value": 9}]}}`
	second := `{"A": {"values": [], "alarms": []}}`

	keep := newTestDashboard(t, Options{RefreshAlarms: false})
	_, _ = keep.Apply(1, decode(t, first))
	_, _ = keep.Apply(2, decode(t, second))
	w, _ := keep.Widget("A")
	assert.Len(t, w.Annotations(), 1)

	refresh := newTestDashboard(t, Options{RefreshAlarms: true})
	_, _ = refresh.Apply(1, decode(t, first))
	_, _ = refresh.Apply(2, decode(t, second))
	w, _ = refresh.Widget("A")
	assert.Empty(t, w.Annotations())
}

func TestApplyEmptyResponseChangesNothing(t *testing.T) {
	d := newTestDashboard(t, Options{PruneStale: false})
	_, err := d.Apply(1, decode(t, `{"A": {"values": []}}`))
	require.NoError(t, err)

	result, err := d.Apply(2, decode(t, `{}`))
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Empty(t, result.Updated)
	assert.Empty(t, result.Removed)
	assert.Equal(t, 1, d.Len())

	empty := newTestDashboard(t, Options{})
	_, err = empty.Apply(1, decode(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestApplyMalformedChannelDoesNotBlockOthers(t *testing.T) {
	d := newTestDashboard(t, Options{})
	_, err := d.Apply(1, decode(t, `{"A": {"values": [{"timestamp": 0, "value": 1}]}}`))
	require.NoError(t, err)

	result, err := d.Apply(2, decode(t, `{
		"B": {"values": "nope"},
		"A": {"values": [{"timestamp": 0, "value": 42}]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, result.Updated)
	assert.ErrorIs(t, result.Failed["B"], models.ErrMalformed)
	widget, _ := d.Widget("A")
	assert.Equal(t, []float64{42}, widget.Values())
	assert.False(t, func() bool { _, ok := d.Widget("B"); return ok }())
}

func TestApplyRenderFailureIsolated(t *testing.T) {
	d := newTestDashboard(t, Options{})

	response := models.HistoryResponse{
		{ID: "bad", Snapshot: &models.ChannelSnapshot{Values: []models.SamplePoint{{}}}},
		{ID: "good", Snapshot: &models.ChannelSnapshot{}},
	}
	result, err := d.Apply(1, response)
	require.NoError(t, err)

	assert.ErrorIs(t, result.Failed["bad"], models.ErrRender)
	assert.Equal(t, []string{"good"}, result.Created)
	assert.Equal(t, 1, d.Len())
}

func TestApplyDiscardsStaleGeneration(t *testing.T) {
	d := newTestDashboard(t, Options{})
	_, err := d.Apply(2, decode(t, `{"A": {"values": [{"timestamp": 0, "value": 2}]}}`))
	require.NoError(t, err)

	_, err = d.Apply(1, decode(t, `{"A": {"values": [{"timestamp": 0, "value": 1}]}}`))
	assert.ErrorIs(t, err, ErrStaleGeneration)

	widget, _ := d.Widget("A")
	assert.Equal(t, []float64{2}, widget.Values())
}

func TestApplyPruneStale(t *testing.T) {
	d := newTestDashboard(t, Options{PruneStale: true})
	_, err := d.Apply(1, decode(t, `{"A": {"values": []}, "B": {"values": []}}`))
	require.NoError(t, err)

	_, ch, unsubscribe := d.EventHub().Subscribe()
	defer unsubscribe()

	result, err := d.Apply(2, decode(t, `{"B": {"values": []}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, result.Removed)
	assert.Equal(t, 1, d.Len())

	_, err = d.Apply(3, decode(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len(), "an empty response never prunes")

	got := map[string]events.Kind{}
	for i := 0; i < 2; i++ {
		ev := <-ch
		got[ev.ChannelID] = ev.Kind
	}
	assert.Equal(t, map[string]events.Kind{"A": events.Removed, "B": events.Updated}, got)
}

func TestWidgetsInFirstSeenOrder(t *testing.T) {
	d := newTestDashboard(t, Options{})
	_, _ = d.Apply(1, decode(t, `{"c": {"values": []}, "a": {"values": []}}`))
	_, _ = d.Apply(2, decode(t, `{"b": {"values": []}, "a": {"values": []}}`))

	var keys []string
	for _, w := range d.Widgets() {
		keys = append(keys, w.Key())
	}
	assert.Equal(t, []string{"c", "a", "b"}, keys)
}
