package upstream

import "time"

type Operation string

const (
	OpEstimateMacros Operation = "estimate_macros"
	OpRecognizeImage Operation = "recognize_image"
)

// Attempt is one HTTP exchange with the provider. StatusCode is 0 when the
// transport failed before a response arrived.
type Attempt struct {
	Operation  Operation
	Number     int
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Outcome is the final result of a call after all of its attempts.
type Outcome struct {
	Operation Operation
	Attempts  int
	Duration  time.Duration
	Err       error
}

// Observer receives attempt and outcome notifications. Implementations must
// not block.
type Observer interface {
	ObserveAttempt(Attempt)
	ObserveOutcome(Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(Attempt) {}
func (nopObserver) ObserveOutcome(Outcome) {}
