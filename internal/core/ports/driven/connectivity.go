package driven

import "context"

// Connectivity reports whether the backend is reachable. Implementations
// may cache probe results briefly; callers treat the answer as advisory
// (the network can drop between the probe and the next request).
type Connectivity interface {
	Online(ctx context.Context) bool
}
