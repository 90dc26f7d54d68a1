// Package threshold implements the Threshold Evaluator (spec §4.5): a
// per-(entity, metric) OK/WARNING/CRITICAL state machine with hysteresis on
// the resolving edge, so a metric bouncing within 10% of its threshold
// never flaps the alert state.
package threshold

import (
	"sync"
)

// Direction is whether a metric alerts on exceeding an upper bound (e.g.
// CPU usage) or falling below a lower bound (e.g. success rate).
type Direction int

const (
	Upper Direction = iota
	Lower
)

// HysteresisFraction is the band a metric must re-cross by before an alert
// resolves, per spec §3/§9A: "10%" and "0.9x" are the same fraction.
const HysteresisFraction = 0.10

// Set is the (warning, critical, direction) triple configured for one
// (entity, metric) pair.
type Set struct {
	Warning   float64
	Critical  float64
	Direction Direction
}

// State is one of the evaluator's three states.
type State int

const (
	OK State = iota
	Warning
	Critical
)

func (s State) String() string {
	switch s {
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "OK"
	}
}

// Transition is emitted whenever Evaluate moves an (entity, metric) to a
// new state; the Alert Manager consumes these (spec §4.5: "each transition
// produces an event to the Alert Manager... OK -> RESOLVED").
type Transition struct {
	EntityID string
	Metric   string
	From     State
	To       State
	Value    float64
	Resolved bool // true when To == OK and From != OK
}

type key struct {
	entityID string
	metric   string
}

// Evaluator holds the threshold configuration and current state for every
// tracked (entity, metric) pair.
type Evaluator struct {
	mu      sync.Mutex
	sets    map[key]Set
	current map[key]State
}

// New creates an empty Evaluator.
func New() *Evaluator {
	return &Evaluator{
		sets:    make(map[key]Set),
		current: make(map[key]State),
	}
}

// Configure registers (or replaces) the threshold set for (entityID,
// metric). Does not reset the current state.
func (e *Evaluator) Configure(entityID, metric string, set Set) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sets[key{entityID, metric}] = set
}

// State returns the current state for (entityID, metric), OK if unknown.
func (e *Evaluator) State(entityID, metric string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current[key{entityID, metric}]
}

// breach reports whether value crosses the given threshold in the
// configured direction.
func breach(value, threshold float64, dir Direction) bool {
	if dir == Lower {
		return value <= threshold
	}
	return value >= threshold
}

// resolved reports whether value has re-crossed threshold by at least the
// hysteresis band, moving back toward OK.
func resolved(value, threshold float64, dir Direction) bool {
	band := threshold * HysteresisFraction
	if dir == Lower {
		return value >= threshold+band
	}
	return value <= threshold-band
}

// Evaluate feeds one observed value through the state machine for
// (entityID, metric) and returns a Transition if the state changed (nil
// otherwise). The table is exactly spec §4.5's:
//
//	OK        -> WARNING when value breaches warning; -> CRITICAL when it
//	             breaches critical directly.
//	WARNING   -> CRITICAL when value breaches critical; -> OK only when
//	             value resolves past warning by the hysteresis band.
//	CRITICAL  -> WARNING when value resolves past critical by the band but
//	             not past warning; -> OK when it resolves past warning too.
func (e *Evaluator) Evaluate(entityID, metric string, value float64) *Transition {
	k := key{entityID, metric}

	e.mu.Lock()
	defer e.mu.Unlock()

	set, ok := e.sets[k]
	if !ok {
		return nil
	}
	from := e.current[k]

	to := from
	switch from {
	case OK:
		if breach(value, set.Critical, set.Direction) {
			to = Critical
		} else if breach(value, set.Warning, set.Direction) {
			to = Warning
		}
	case Warning:
		if breach(value, set.Critical, set.Direction) {
			to = Critical
		} else if resolved(value, set.Warning, set.Direction) {
			to = OK
		}
	case Critical:
		if resolved(value, set.Warning, set.Direction) {
			to = OK
		} else if resolved(value, set.Critical, set.Direction) {
			to = Warning
		}
	}

	if to == from {
		return nil
	}
	e.current[k] = to
	return &Transition{
		EntityID: entityID,
		Metric:   metric,
		From:     from,
		To:       to,
		Value:    value,
		Resolved: to == OK,
	}
}

// Forget drops the threshold set and current state for (entityID, metric).
func (e *Evaluator) Forget(entityID, metric string) {
	k := key{entityID, metric}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sets, k)
	delete(e.current, k)
}
