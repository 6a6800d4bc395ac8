// Package speech estimates how long the avatar should animate its mouth
// for a piece of text.
package speech

import (
	"time"
	"unicode/utf8"
)

// Tunable parameters
const (
	// PerCharacter is the speaking time allotted to each character.
	PerCharacter = 45 * time.Millisecond

	// MinDuration and MaxDuration clamp the estimate.
	MinDuration = 800 * time.Millisecond
	MaxDuration = 8000 * time.Millisecond

	// SafetyStopDelay is added to the estimate before a talk source sends an
	// explicit stop, in case the timed expiry was missed.
	SafetyStopDelay = 150 * time.Millisecond
)

// Duration estimates the talk duration for text.
func Duration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * PerCharacter
	if d < MinDuration {
		return MinDuration
	}
	if d > MaxDuration {
		return MaxDuration
	}
	return d
}

// StopAfter is when a talk source should send its safety stop for text.
func StopAfter(text string) time.Duration {
	return Duration(text) + SafetyStopDelay
}
