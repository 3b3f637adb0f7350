package port

import "time"

// Sink is the terminal side of the dashboard.
type Sink interface {
	// WriteLive overwrites the current status line (no newline).
	WriteLive(line string) error
	// WriteSnapshot appends a timestamped block of basket lines and leaves an empty
	// line for the next live update.
	WriteSnapshot(ts time.Time, lines []string) error
	NewLine() error
}
