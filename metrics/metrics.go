// Package metrics defines the instrumentation hooks recorded by the library.
// Components accept a Recorder and never depend on a concrete backend; the
// default is a no-op and a Prometheus implementation is provided.
package metrics

import "time"

// Recorder receives measurement events from the library.
type Recorder interface {
	// ObserveQueueWait records how long a request waited in a chain's RPC queue
	// before being dispatched.
	ObserveQueueWait(chainKey string, wait time.Duration)

	// IncVerification counts a verification outcome by its reason code, or
	// "verified" for a positive outcome.
	IncVerification(chainKey string, outcome string)

	// IncOrderTransition counts a reconciliation state transition.
	IncOrderTransition(from, to string)

	// ObserveResolverIterations records how many quote iterations a reverse
	// rate resolution used.
	ObserveResolverIterations(iterations int)
}
