package store

import (
	"sync"

	"sensorboard/models"
)

// History keeps the most recent samples and alarms per channel, which is what the history endpoint serves.
type History struct {
	mu       sync.Mutex
	size     int
	channels map[string]*models.ChannelSnapshot
}

func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size, channels: map[string]*models.ChannelSnapshot{}}
}

func (h *History) AddSample(id string, point models.SamplePoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.channel(id)
	c.Values = append(c.Values, point)
	if over := len(c.Values) - h.size; over > 0 {
		c.Values = c.Values[over:]
	}
}

func (h *History) AddAlarm(id string, alarm models.AlarmEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.channel(id)
	c.Alarms = append(c.Alarms, alarm)
	if over := len(c.Alarms) - h.size; over > 0 {
		c.Alarms = c.Alarms[over:]
	}
}

// Snapshot copies the current history of every channel.
func (h *History) Snapshot() map[string]models.ChannelSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]models.ChannelSnapshot, len(h.channels))
	for id, c := range h.channels {
		out[id] = models.ChannelSnapshot{
			Values: append(make([]models.SamplePoint, 0, len(c.Values)), c.Values...),
			Alarms: append(make([]models.AlarmEvent, 0, len(c.Alarms)), c.Alarms...),
		}
	}
	return out
}

func (h *History) channel(id string) *models.ChannelSnapshot {
	c, ok := h.channels[id]
	if !ok {
		c = &models.ChannelSnapshot{Values: []models.SamplePoint{}, Alarms: []models.AlarmEvent{}}
		h.channels[id] = c
	}
	return c
}
