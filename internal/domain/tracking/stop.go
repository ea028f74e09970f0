package tracking

import "time"

// StopEpisode records one continuous stretch of zero-speed
// observations for a driver. StoppedSince is fixed at the first such
// observation; only the location is refreshed afterwards.
type StopEpisode struct {
	StoppedSince time.Time
	LastLocation string
	Alerted      bool
}

// Duration returns how long the episode has lasted as of now.
func (e *StopEpisode) Duration(now time.Time) time.Duration {
	return now.Sub(e.StoppedSince)
}
