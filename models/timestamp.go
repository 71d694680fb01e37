package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order for string timestamps. The naive layouts are what python's isoformat() and
// str(datetime) produce and are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// maxEpochMs is the largest distance from the epoch a javascript Date can hold.
const maxEpochMs = 8.64e15

// Timestamp accepts either epoch milliseconds (a JSON number or numeric string) or a date string.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("empty timestamp")
	}

	if b[0] != '"' {
		ms, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("bad timestamp %s: %w", b, err)
		}
		parsed, err := fromEpochMs(ms)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTimestamp parses a date string or a decimal epoch millisecond string.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpochMs(float64(ms))
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func fromEpochMs(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMs {
		return time.Time{}, fmt.Errorf("timestamp %v out of range", ms)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}
