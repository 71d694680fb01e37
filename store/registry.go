package store

import (
	"slices"

	"sensorboard/models"
)

// ChartRegistry maps channel ids to their chart widgets and remembers the order channels were first seen in. It
// does no locking of its own; Dashboard guards it.
type ChartRegistry struct {
	widgets map[string]*models.ChartWidget
	order   []string
}

func NewChartRegistry() *ChartRegistry {
	return &ChartRegistry{widgets: map[string]*models.ChartWidget{}}
}

func (r *ChartRegistry) Has(id string) bool {
	_, ok := r.widgets[id]
	return ok
}

func (r *ChartRegistry) Get(id string) (*models.ChartWidget, bool) {
	w, ok := r.widgets[id]
	return w, ok
}

func (r *ChartRegistry) Put(id string, widget *models.ChartWidget) {
	if _, ok := r.widgets[id]; !ok {
		r.order = append(r.order, id)
	}
	r.widgets[id] = widget
}

func (r *ChartRegistry) Remove(id string) bool {
	if _, ok := r.widgets[id]; !ok {
		return false
	}
	delete(r.widgets, id)
	r.order = slices.DeleteFunc(r.order, func(key string) bool { return key == id })
	return true
}

// Keys returns channel ids in first-seen order.
func (r *ChartRegistry) Keys() []string {
	return slices.Clone(r.order)
}

func (r *ChartRegistry) Len() int {
	return len(r.widgets)
}
