// Package engine provides the lightweight module orchestrator (service
// engine core) that sequences startup, shutdown, health, and readiness for
// the ingestion engine's top-level components: the consumer runtime, the
// periodic-analyzer scheduler, the outbox-backed emitter, and the storage
// layer. It is adapted from the teacher's system/core package, trimmed down
// from ~20 blockchain-domain engine-kind interfaces (AccountEngine,
// ComputeEngine, LedgerEngine, ...) to the one this process actually needs:
// a module that can be named, domained, started, and stopped.
package engine

import "context"

// ServiceModule is anything the engine can register, start, and stop in
// dependency order. The consumer runtime and the scheduler implement this;
// the outbox bus and the Postgres store do not.
type ServiceModule interface {
	Name() string
	Domain() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ReadyChecker is implemented by modules that can report their own
// readiness beyond "started" (e.g. a store that pings its database).
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// ReadySetter is implemented by modules that want to be notified when the
// engine recomputes their readiness, typically to flip an internal flag an
// HTTP health endpoint reads.
type ReadySetter interface {
	SetReady(status string, errMsg string)
}
