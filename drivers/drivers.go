package drivers

import "context"

// Driver is something that runs in the background feeding data into the process until its context is cancelled.
type Driver interface {
	Init() error
	Run(ctx context.Context) error
}

// HistorySource produces the JSON body served on /history.
type HistorySource interface {
	History() ([]byte, error)
}
