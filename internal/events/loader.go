package events

import "time"

// LoaderBatch is emitted after a loader dispatched one batch to the domain
// service layer.
type LoaderBatch struct {
	Loader   string
	Size     int
	Found    int
	Err      error
	Started  time.Time
	Duration time.Duration
}
