// Package system provides clock implementations for the crawler and indexer.
package system

import "time"

// Clock reads wall time in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant. Useful in tests and reproducible builds.
type Fixed struct {
	At time.Time
}

// Now returns f.At.
func (f Fixed) Now() time.Time {
	return f.At
}
