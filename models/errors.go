package models

import "errors"

var (
	// ErrNetwork is returned when the history endpoint can't be reached or answers with a non-2xx status.
	ErrNetwork = errors.New("history fetch failed")
	// ErrMalformed is returned when a history body, or a single channel within it, can't be decoded.
	ErrMalformed = errors.New("malformed history")
	// ErrRender is returned when a snapshot can't be turned into chart data.
	ErrRender = errors.New("render failed")
)
