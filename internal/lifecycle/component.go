// Package lifecycle starts and stops the long-running parts of `judge serve`
// in dependency order.
package lifecycle

import "context"

// Component is a unit the Manager starts and stops. The config watcher,
// the tracing provider and the HTTP server implement it.
type Component interface {
	// Start brings the component up. It must not block past startup.
	Start(ctx context.Context) error

	// Stop shuts the component down within the deadline of ctx.
	Stop(ctx context.Context) error

	// Name identifies the component in logs and errors.
	Name() string
}
