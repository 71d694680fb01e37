package store

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"sensorboard/events"
	"sensorboard/metrics"
	"sensorboard/models"
)

// ErrStaleGeneration is returned by Apply when a newer poll has already been applied.
var ErrStaleGeneration = errors.New("stale poll generation")

type Options struct {
	// RefreshAlarms rebuilds alarm markers on update as well as on create.
	RefreshAlarms bool
	// PruneStale removes widgets for channels that a non-empty response no longer contains.
	PruneStale bool
}

// ApplyResult lists what one Apply did, by channel id.
type ApplyResult struct {
	Created []string
	Updated []string
	Removed []string
	Failed  map[string]error
}

// Dashboard owns the chart registry and is the only thing that mutates it.
type Dashboard struct {
	mu             sync.RWMutex
	registry       *ChartRegistry
	options        Options
	lastGeneration uint64

	eventHub *events.EventHub
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
}

func NewDashboard(options Options, eventHub *events.EventHub, m *metrics.Metrics, log *zap.SugaredLogger) *Dashboard {
	if eventHub == nil {
		eventHub = events.NewHub()
	}
	return &Dashboard{
		registry: NewChartRegistry(),
		options:  options,
		eventHub: eventHub,
		metrics:  m,
		log:      log,
	}
}

func (d *Dashboard) EventHub() *events.EventHub {
	return d.eventHub
}

// Apply creates or updates a widget for every channel in the response, in response order. A channel that is
// malformed or fails to render is logged and skipped without affecting the others. Responses older than the last
// applied generation are dropped whole.
func (d *Dashboard) Apply(generation uint64, response models.HistoryResponse) (*ApplyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if generation < d.lastGeneration {
		return nil, fmt.Errorf("%w: %d < %d", ErrStaleGeneration, generation, d.lastGeneration)
	}
	d.lastGeneration = generation

	result := &ApplyResult{Failed: map[string]error{}}
	seen := make(map[string]bool, len(response))

	for _, entry := range response {
		seen[entry.ID] = true

		if entry.Err != nil {
			d.fail(result, entry.ID, metrics.ChannelMalformed, entry.Err)
			continue
		}

		widget, ok := d.registry.Get(entry.ID)
		if !ok {
			widget, err := models.NewChartWidget(entry.ID, entry.Snapshot)
			if err != nil {
				d.fail(result, entry.ID, metrics.ChannelRender, err)
				continue
			}
			d.registry.Put(entry.ID, widget)
			result.Created = append(result.Created, entry.ID)
			d.eventHub.Broadcast(&events.Event{ChannelID: entry.ID, Kind: events.Created, Version: widget.Version()})
			continue
		}

		if err := widget.Update(entry.Snapshot, d.options.RefreshAlarms); err != nil {
			d.fail(result, entry.ID, metrics.ChannelRender, err)
			continue
		}
		result.Updated = append(result.Updated, entry.ID)
		d.eventHub.Broadcast(&events.Event{ChannelID: entry.ID, Kind: events.Updated, Version: widget.Version()})
	}

	// An empty response carries no information about which channels went away.
	if d.options.PruneStale && len(response) > 0 {
		for _, id := range d.registry.Keys() {
			if seen[id] {
				continue
			}
			d.registry.Remove(id)
			result.Removed = append(result.Removed, id)
			d.eventHub.Broadcast(&events.Event{ChannelID: id, Kind: events.Removed})
		}
	}

	d.metrics.SetWidgets(d.registry.Len())
	if d.log != nil {
		d.log.Debugf("applied poll %d: created %d updated %d removed %d failed %d",
			generation, len(result.Created), len(result.Updated), len(result.Removed), len(result.Failed))
	}

	return result, nil
}

func (d *Dashboard) fail(result *ApplyResult, id, reason string, err error) {
	result.Failed[id] = err
	d.metrics.ChannelFailed(reason)
	if d.log != nil {
		d.log.Warnf("skipping channel %s: %v", id, err)
	}
}

// Widget returns a copy of the widget for a channel.
func (d *Dashboard) Widget(id string) (*models.ChartWidget, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.registry.Get(id)
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// Widgets returns copies of every widget in first-seen order.
func (d *Dashboard) Widgets() []*models.ChartWidget {
	d.mu.RLock()
	defer d.mu.RUnlock()
	widgets := make([]*models.ChartWidget, 0, d.registry.Len())
	for _, id := range d.registry.Keys() {
		w, _ := d.registry.Get(id)
		widgets = append(widgets, w.Clone())
	}
	return widgets
}

func (d *Dashboard) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registry.Len()
}
