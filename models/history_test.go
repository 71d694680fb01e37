package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHistoryKeepsOrder(t *testing.T) {
	body := `{
		"zeta":  {"values": [{"timestamp": 0, "value": 1}], "alarms": []},
		"alpha": {"values": [], "alarms": []},
		"mid":   {"values": [{"timestamp": "2024-05-01T10:00:00Z", "value": 3.5}]}
	}`

	response, err := DecodeHistory(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, response, 3)

	assert.Equal(t, "zeta", response[0].ID)
	assert.Equal(t, "alpha", response[1].ID)
	assert.Equal(t, "mid", response[2].ID)
	for _, entry := range response {
		assert.NoError(t, entry.Err)
	}

	mid, ok := response.Lookup("mid")
	require.True(t, ok)
	assert.Empty(t, mid.Snapshot.Alarms)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), mid.Snapshot.Values[0].Timestamp.UTC())
}

func TestDecodeHistoryIsolatesMalformedChannel(t *testing.T) {
	body := `{
		"A": {"values": [{"timestamp": 0, "value": 1}], "alarms": []},
		"B": {"values": [{"timestamp": 0, "value": "high"}]},
		"C": {"alarms": []},
		"D": {"values": [{"value": 2}]}
	}`

	response, err := DecodeHistory(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, response, 4)

	assert.NoError(t, response[0].Err)
	require.NotNil(t, response[0].Snapshot)
	for _, entry := range response[1:] {
		assert.ErrorIs(t, entry.Err, ErrMalformed, entry.ID)
		assert.Nil(t, entry.Snapshot, entry.ID)
	}
}

func TestDecodeHistoryRejectsBadBodies(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     ``,
		"array":     `[]`,
		"truncated": `{"A": {"values": [`,
		"html":      `<html>502</html>`,
		"trailing":  `{"A": {"values": []}} trailing garbage`,
		"two":       `{"A": {"values": []}}{}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeHistory(strings.NewReader(body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeHistoryAllowsTrailingWhitespace(t *testing.T) {
	response, err := DecodeHistory(strings.NewReader("{\"A\": {\"values\": []}}\n\t "))
	require.NoError(t, err)
	assert.Len(t, response, 1)
}

func TestDecodeHistoryOutOfRangeTimestamp(t *testing.T) {
	body := `{
		"A": {"values": [{"timestamp": 1e300, "value": 1}]},
		"B": {"values": [{"timestamp": "99999999999999999", "value": 1}]},
		"C": {"values": [{"timestamp": 8.64e15, "value": 1}]}
	}`

	response, err := DecodeHistory(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, response, 3)
	assert.ErrorIs(t, response[0].Err, ErrMalformed)
	assert.ErrorIs(t, response[1].Err, ErrMalformed)
	assert.NoError(t, response[2].Err)
}

func TestDecodeHistoryEmptyObject(t *testing.T) {
	response, err := DecodeHistory(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Empty(t, response)
}

func TestDecodeHistoryDuplicateKeyTakesLastValue(t *testing.T) {
	body := `{"A": {"values": []}, "B": {"values": []}, "A": {"values": [{"timestamp": 1, "value": 7}]}}`

	response, err := DecodeHistory(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, response, 2)
	assert.Equal(t, "A", response[0].ID)
	require.Len(t, response[0].Snapshot.Values, 1)
	assert.Equal(t, 7.0, response[0].Snapshot.Values[0].Value)
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"2024-05-01T10:00:00Z":       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"2024-05-01T10:00:00+02:00":  time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		"2024-05-01T10:00:00.250000": time.Date(2024, 5, 1, 10, 0, 0, 250000000, time.UTC),
		"2024-05-01 10:00:00":        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"1714557600000":              time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	b, err := ts.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T10:00:00Z"`, string(b))

	var back Timestamp
	require.NoError(t, back.UnmarshalJSON(b))
	assert.True(t, ts.Equal(back.Time))
}
