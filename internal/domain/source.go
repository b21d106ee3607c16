package domain

// EventSource produces an ordered sequence of book-update events from a
// recorded feed. Next returns io.EOF once the feed is exhausted; malformed
// records are skipped internally and never surface as errors.
type EventSource interface {
	Next() (Event, error)
	Skipped() int
	Close() error
}
