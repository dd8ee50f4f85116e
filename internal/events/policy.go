package events

import "fmt"

// OverflowPolicy decides what happens when a subscriber's buffer is full.
type OverflowPolicy string

const (
	// DropOldest discards the oldest buffered event to make room.
	DropOldest OverflowPolicy = "drop-oldest"
	// CloseSlow deregisters and closes the subscriber.
	CloseSlow OverflowPolicy = "close-slow"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// ParseOverflowPolicy parses a configured policy name.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case DropOldest, CloseSlow:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q (want %q or %q)", s, DropOldest, CloseSlow)
	}
}
