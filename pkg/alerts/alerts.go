// Package alerts implements the Alert Manager (spec §4.7): alert
// construction, severity-based channel routing, per-(type, entity)
// cooldown enforcement, and resolution semantics that suppress redundant
// re-raises for the cooldown window.
package alerts

import (
	"sync"
	"time"
)

// Severity is one of the engine's four alert severities.
type Severity string

const (
	Info     Severity = "INFO"
	Warning  Severity = "WARNING"
	High     Severity = "HIGH"
	Critical Severity = "CRITICAL"
)

// Channel is an outbound notification channel (spec §1: channels
// themselves are an external collaborator; the Alert Manager only decides
// which ones a severity routes to).
type Channel string

const (
	ChatChannel    Channel = "chat"
	EmailChannel   Channel = "email"
	SMSChannel     Channel = "sms"
	PagingChannel  Channel = "paging"
)

// channelsBySeverity is spec §4.7's routing table.
var channelsBySeverity = map[Severity][]Channel{
	Info:     {ChatChannel},
	Warning:  {ChatChannel, EmailChannel},
	High:     {ChatChannel, EmailChannel, PagingChannel},
	Critical: {ChatChannel, EmailChannel, SMSChannel, PagingChannel},
}

// cooldowns per severity, spec §4.7 / §6: 5 min for CRITICAL, 15 min
// otherwise.
const (
	CriticalCooldown = 5 * time.Minute
	DefaultCooldown  = 15 * time.Minute
)

func cooldownFor(s Severity) time.Duration {
	if s == Critical {
		return CriticalCooldown
	}
	return DefaultCooldown
}

// Alert is the engine's alert record (spec §3).
type Alert struct {
	ID            string
	Type          string
	Severity      Severity
	EntityID      string
	Message       string
	RaisedAt      time.Time
	ResolvedAt    *time.Time
	CooldownUntil time.Time
}

// Channels returns the outbound channels an alert of this severity fans
// out to (spec §4.7).
func (a Alert) Channels() []Channel {
	return channelsBySeverity[a.Severity]
}

// Sink is the external collaborator that delivers a constructed alert to
// its outbound channels and mirrors it to the `monitoring.alerts` topic
// (spec §1, §4.7). Implemented outside this core.
type Sink interface {
	Dispatch(alert Alert) error
	MirrorToMonitoring(alert Alert) error
}

// IDGenerator produces a fresh alert id; swappable in tests.
type IDGenerator func() string

type activeKey struct {
	alertType string
	entityID  string
}

// Manager owns per-(type, entity) cooldown state and active-alert
// uniqueness (spec §3 invariant: "an active alert of a given (type,
// entity) is unique at any instant").
type Manager struct {
	mu       sync.Mutex
	active   map[activeKey]*Alert
	sink     Sink
	newID    IDGenerator
	now      func() time.Time
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithIDGenerator overrides the default id generator (tests supply a
// deterministic one).
func WithIDGenerator(gen IDGenerator) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithClock overrides the manager's notion of "now" (tests supply a fake
// clock to exercise cooldown expiry deterministically).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager backed by sink.
func New(sink Sink, opts ...Option) *Manager {
	m := &Manager{
		active: make(map[activeKey]*Alert),
		sink:   sink,
		newID:  defaultIDGenerator,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var idCounter int64

func defaultIDGenerator() string {
	idCounter++
	return "alert-" + time.Now().UTC().Format("20060102T150405.000000000")
}

// Raise constructs and dispatches an alert of the given type/severity for
// entityID, unless an active alert of the same (type, entity) is within its
// cooldown window, in which case the raise is suppressed (spec §4.7, §8
// Cooldown property). Returns the alert (freshly raised, or the suppressed
// attempt with raisedAt unchanged) and whether it was actually dispatched.
func (m *Manager) Raise(alertType string, severity Severity, entityID, message string) (Alert, bool) {
	k := activeKey{alertType, entityID}
	now := m.now()

	m.mu.Lock()
	if existing, ok := m.active[k]; ok && now.Before(existing.CooldownUntil) {
		suppressed := *existing
		m.mu.Unlock()
		return suppressed, false
	}

	a := Alert{
		ID:            m.newID(),
		Type:          alertType,
		Severity:      severity,
		EntityID:      entityID,
		Message:       message,
		RaisedAt:      now,
		CooldownUntil: now.Add(cooldownFor(severity)),
	}
	m.active[k] = &a
	m.mu.Unlock()

	if m.sink != nil {
		_ = m.sink.Dispatch(a)
		_ = m.sink.MirrorToMonitoring(a)
	}
	return a, true
}

// Resolve clears the active alert for (alertType, entityID), dispatching a
// RESOLVED signal, and suppresses redundant re-raises for the remainder of
// the cooldown window (spec §4.7 Resolution). A resolve with no matching
// active alert is a no-op.
func (m *Manager) Resolve(alertType, entityID string) (Alert, bool) {
	k := activeKey{alertType, entityID}
	now := m.now()

	m.mu.Lock()
	existing, ok := m.active[k]
	if !ok || existing.ResolvedAt != nil {
		m.mu.Unlock()
		return Alert{}, false
	}
	resolvedAt := now
	existing.ResolvedAt = &resolvedAt
	resolved := *existing
	m.mu.Unlock()

	if m.sink != nil {
		_ = m.sink.Dispatch(resolved)
		_ = m.sink.MirrorToMonitoring(resolved)
	}
	return resolved, true
}

// Active returns the currently active (unresolved) alert for (alertType,
// entityID), if any.
func (m *Manager) Active(alertType, entityID string) (Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.active[activeKey{alertType, entityID}]
	if !ok || a.ResolvedAt != nil {
		return Alert{}, false
	}
	return *a, true
}

// InCooldown reports whether (alertType, entityID) is currently suppressed
// by an active cooldown window, regardless of resolution state.
func (m *Manager) InCooldown(alertType, entityID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.active[activeKey{alertType, entityID}]
	if !ok {
		return false
	}
	return m.now().Before(a.CooldownUntil)
}
