package domain

import "time"

// Direction represents the side of a binary position (BUY = price goes up, SELL = price goes down).
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Valid reports whether d is one of the supported directions.
func (d Direction) Valid() bool {
	return d == Buy || d == Sell
}

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	StatusOpen PositionStatus = "OPEN"
	StatusWon  PositionStatus = "WON"
	StatusLost PositionStatus = "LOST"
)

// Terminal reports whether the status is a final outcome.
func (s PositionStatus) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// Granularity is the chart bucket size selected by a user.
type Granularity string

const (
	Granularity1m  Granularity = "1m"
	Granularity5m  Granularity = "5m"
	Granularity15m Granularity = "15m"
)

// Duration returns the bucket length, or zero for an unknown granularity.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Granularity1m:
		return time.Minute
	case Granularity5m:
		return 5 * time.Minute
	case Granularity15m:
		return 15 * time.Minute
	default:
		return 0
	}
}

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	return g.Duration() > 0
}
