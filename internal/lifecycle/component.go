package lifecycle

import "context"

// Component is the startup/shutdown contract for everything the daemon
// manages (tracing provider, artifact watcher, metrics server).
type Component interface {
	// Start initializes and starts the component. Must be safe to call
	// under a context that may already be canceled; returns an error when
	// initialization fails.
	Start(ctx context.Context) error

	// Stop gracefully stops the component, completing in-flight work
	// within the context deadline.
	Stop(ctx context.Context) error

	// Name identifies the component in logs and error messages.
	// Must be non-empty.
	Name() string
}
