package bootstrap

import (
	"context"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/scheduler"
)

// runtimeModule adapts *consumer.Runtime to engine.ServiceModule: Runtime's
// Start takes no error return and its shutdown method is named Shutdown,
// neither of which matches the interface signature the lifecycle manager
// drives every module through.
type runtimeModule struct {
	runtime *consumer.Runtime
}

func newRuntimeModule(r *consumer.Runtime) *runtimeModule {
	return &runtimeModule{runtime: r}
}

func (m *runtimeModule) Name() string   { return "consumer-runtime" }
func (m *runtimeModule) Domain() string { return "ingestion" }

func (m *runtimeModule) Start(ctx context.Context) error {
	m.runtime.Start(ctx)
	return nil
}

func (m *runtimeModule) Stop(ctx context.Context) error {
	return m.runtime.Shutdown(ctx)
}

// schedulerModule adapts *scheduler.Scheduler to engine.ServiceModule for
// the same reason as runtimeModule.
type schedulerModule struct {
	sched *scheduler.Scheduler
}

func newSchedulerModule(s *scheduler.Scheduler) *schedulerModule {
	return &schedulerModule{sched: s}
}

func (m *schedulerModule) Name() string   { return "scheduler" }
func (m *schedulerModule) Domain() string { return "analysis" }

func (m *schedulerModule) Start(ctx context.Context) error {
	m.sched.Start(ctx)
	return nil
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.sched.Shutdown(ctx)
}
