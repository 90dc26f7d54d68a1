package engine

import (
	"context"
	"log"
)

// Engine is the lightweight core orchestrator. It holds a registry of
// modules and drives their lifecycle, health, and readiness. bootstrap
// wires one Engine per process and registers the consumer runtime and the
// scheduler as ServiceModules here, so Start brings them up in dependency
// order and Stop takes them down in reverse registration order. The
// outbox bus and the database handle are not modules; App.Shutdown closes
// them after the engine stops.
type Engine struct {
	registry  *Registry
	lifecycle *LifecycleManager
	health    *HealthMonitor
	deps      *DependencyManager

	log *log.Logger
}

// New returns an empty Engine ready to accept modules.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		health:   NewHealthMonitor(),
		deps:     NewDependencyManager(),
		log:      log.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.registry.SetHealthMonitor(e.health)
	e.lifecycle = NewLifecycleManager(e.registry, e.deps, e.health, e.log)

	return e
}

// Register adds a service module to the engine. Names must be unique.
func (e *Engine) Register(module ServiceModule) error {
	return e.registry.Register(module)
}

// Unregister removes a module and its dependency/health records.
func (e *Engine) Unregister(name string) error {
	e.deps.RemoveDeps(name)
	return e.registry.Unregister(name)
}

// Modules returns the registered module names (ordered).
func (e *Engine) Modules() []string {
	return e.registry.Modules()
}

// Lookup returns a module by name, if registered.
func (e *Engine) Lookup(name string) ServiceModule {
	return e.registry.Lookup(name)
}

// ModulesByDomain returns modules matching the provided domain.
func (e *Engine) ModulesByDomain(domain string) []ServiceModule {
	return e.registry.ModulesByDomain(domain)
}

// SetModuleDeps records dependencies for a module (by name), consulted by
// Start to resolve a safe bring-up order.
func (e *Engine) SetModuleDeps(name string, deps ...string) {
	e.deps.SetDeps(name, deps...)
}

// Start walks registered modules in dependency order.
func (e *Engine) Start(ctx context.Context) error {
	return e.lifecycle.Start(ctx)
}

// Stop walks registered modules in reverse registration order, continuing
// past individual module failures so the rest of the process still
// releases its resources.
func (e *Engine) Stop(ctx context.Context) error {
	return e.lifecycle.Stop(ctx)
}

// ProbeReadiness runs lightweight readiness checks for modules that
// implement ReadyChecker, honoring declared dependencies.
func (e *Engine) ProbeReadiness(ctx context.Context) {
	e.lifecycle.ProbeReadiness(ctx)
}

// ModulesHealth returns the latest known lifecycle state per module
// (ordered), suitable for a health/readiness endpoint.
func (e *Engine) ModulesHealth() []ModuleHealth {
	return e.health.ModulesHealth(e.registry.Modules())
}

// Logger returns the engine logger.
func (e *Engine) Logger() *log.Logger {
	if e == nil {
		return nil
	}
	return e.log
}

// Registry returns the underlying registry for advanced use cases.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Health returns the underlying health monitor for advanced use cases.
func (e *Engine) Health() *HealthMonitor {
	return e.health
}
