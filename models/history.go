package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// SamplePoint is a single sensor reading.
type SamplePoint struct {
	Timestamp Timestamp `json:"timestamp"`
	Value     float64   `json:"value"`
}

// AlarmEvent marks a point in time that was flagged as anomalous. It is drawn as a marker, never as a series.
type AlarmEvent struct {
	Timestamp Timestamp `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ChannelSnapshot is everything one poll returned for a channel.
type ChannelSnapshot struct {
	Values []SamplePoint `json:"values"`
	Alarms []AlarmEvent  `json:"alarms"`
}

// ChannelEntry is one decoded channel of a history response. Err is set, and Snapshot left nil, when this channel
// alone was malformed.
type ChannelEntry struct {
	ID       string
	Snapshot *ChannelSnapshot
	Err      error
}

// HistoryResponse holds the channels of one poll in the order they appeared in the body.
type HistoryResponse []ChannelEntry

// Lookup returns the entry for a channel.
func (h HistoryResponse) Lookup(id string) (ChannelEntry, bool) {
	for _, entry := range h {
		if entry.ID == id {
			return entry, true
		}
	}
	return ChannelEntry{}, false
}

type rawPoint struct {
	Timestamp *Timestamp `json:"timestamp"`
	Value     *float64   `json:"value"`
}

func (r *rawPoint) check() error {
	if r.Timestamp == nil {
		return errors.New("missing timestamp")
	}
	if r.Value == nil {
		return errors.New("missing value")
	}
	return nil
}

func (p *SamplePoint) UnmarshalJSON(b []byte) error {
	var raw rawPoint
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if err := raw.check(); err != nil {
		return err
	}
	p.Timestamp, p.Value = *raw.Timestamp, *raw.Value
	return nil
}

func (a *AlarmEvent) UnmarshalJSON(b []byte) error {
	var raw rawPoint
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if err := raw.check(); err != nil {
		return err
	}
	a.Timestamp, a.Value = *raw.Timestamp, *raw.Value
	return nil
}

// UnmarshalJSON requires values to be present. alarms may be left out, which reads as no alarms.
func (s *ChannelSnapshot) UnmarshalJSON(b []byte) error {
	var raw struct {
		Values *[]SamplePoint `json:"values"`
		Alarms []AlarmEvent   `json:"alarms"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Values == nil {
		return errors.New("missing values")
	}
	s.Values = *raw.Values
	s.Alarms = raw.Alarms
	return nil
}

// DecodeHistory reads a history body. The body as a whole must be a JSON object, otherwise ErrMalformed is
// returned; each channel is decoded on its own so a bad channel only marks its own entry.
func DecodeHistory(r io.Reader) (HistoryResponse, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected object, got %v", ErrMalformed, tok)
	}

	response := HistoryResponse{}
	index := map[string]int{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		id, _ := tok.(string)

		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: channel %s: %v", ErrMalformed, id, err)
		}

		entry := ChannelEntry{ID: id}
		snapshot := &ChannelSnapshot{}
		if err = json.Unmarshal(raw, snapshot); err != nil {
			entry.Err = fmt.Errorf("%w: channel %s: %v", ErrMalformed, id, err)
		} else {
			entry.Snapshot = snapshot
		}

		// Duplicate keys keep their first position but take the last value.
		if i, ok := index[id]; ok {
			response[i] = entry
			continue
		}
		index[id] = len(response)
		response = append(response, entry)
	}

	if _, err = dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err = dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after history object", ErrMalformed)
	}

	return response, nil
}
