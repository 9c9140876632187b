package metrics

import "time"

// NoopRecorder discards all measurements. It is the default when no recorder
// is configured.
type NoopRecorder struct{}

// NewNoopRecorder creates a recorder that discards everything.
func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) ObserveQueueWait(chainKey string, wait time.Duration) {}

func (NoopRecorder) IncVerification(chainKey string, reason string) {}

func (NoopRecorder) IncOrderTransition(from, to string) {}

func (NoopRecorder) ObserveResolverIterations(iterations int) {}
