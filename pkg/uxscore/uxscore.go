// Package uxscore implements the Session/Journey/Heatmap engine backing the
// User experience family (spec §3, §4.9): a per-session UX scorecard keyed
// by session id, and a 24-hour idle expiry. Retention is bounded by Sweep,
// which drops a session whole once it is older than 7 days or has recorded
// more than MaxEventsPerSession events; individual events are not stored,
// so there is no trimming to the last N events.
package uxscore

import (
	"sync"
	"time"
)

// weights is spec §4.9's UX scorecard weighting: performance 25%, usability
// 20%, accessibility 15%, satisfaction 25%, engagement 15%.
var weights = map[string]float64{
	"performance":   0.25,
	"usability":     0.20,
	"accessibility": 0.15,
	"satisfaction":  0.25,
	"engagement":    0.15,
}

// MaxEventsPerSession bounds per-session retention: Sweep drops a session
// whole once its event count exceeds this.
const MaxEventsPerSession = 500

// IdleExpiry is the session lifecycle's idle timeout (spec §3: "expires
// when idle for 24 hours").
const IdleExpiry = 24 * time.Hour

// MaxAge is the 7-day retention ceiling, enforced alongside MaxEventsPerSession.
const MaxAge = 7 * 24 * time.Hour

// Scorecard is the computed, read-only snapshot of one session's UX state.
type Scorecard struct {
	SessionID    string
	Overall      float64
	Subscores    map[string]float64
	ClickCount   int
	RageClicks   int
	Frustrations int
	UpdatedAt    time.Time
}

type session struct {
	id             string
	createdAt      time.Time
	lastEventAt    time.Time
	subscoreSum    map[string]float64
	subscoreCount  map[string]int
	clickCount     int
	rageClicks     int
	frustrations   int
	pages          map[string]int
	eventCount     int
}

// Tracker owns every active session's UX state. All mutation and reads go
// through its methods (spec §3 Ownership).
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{sessions: make(map[string]*session)}
}

func (t *Tracker) ensureLocked(id string, at time.Time) *session {
	s, ok := t.sessions[id]
	if !ok {
		s = &session{
			id: id, createdAt: at, lastEventAt: at,
			subscoreSum: make(map[string]float64), subscoreCount: make(map[string]int),
			pages: make(map[string]int),
		}
		t.sessions[id] = s
	}
	return s
}

// Observe folds a subscore-dimension observation (one of performance,
// usability, accessibility, satisfaction, engagement) into the session's
// running average for that dimension.
func (t *Tracker) Observe(sessionID, dimension string, value float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.ensureLocked(sessionID, at)
	s.lastEventAt = at
	s.eventCount++
	s.subscoreCount[dimension]++
	n := float64(s.subscoreCount[dimension])
	s.subscoreSum[dimension] = runningMean(s.subscoreSum[dimension], n-1, value)
}

// runningMean folds value into a running mean currently at prevMean over
// prevCount samples, returning the updated mean over prevCount+1 samples.
func runningMean(prevMean, prevCount, value float64) float64 {
	if prevCount <= 0 {
		return value
	}
	n := prevCount + 1
	return prevMean + (value-prevMean)/n
}

// RecordClick registers a click event on a page within a session, per spec
// §4.9 Clickstream/heatmap input. rage marks a rapid-repeat "rage click"
// pattern (spec §4.10 "Session replay selection: pick 'interesting'
// sessions (> 50 clicks, rage)").
func (t *Tracker) RecordClick(sessionID, page string, rage bool, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.ensureLocked(sessionID, at)
	s.lastEventAt = at
	s.eventCount++
	s.clickCount++
	if page != "" {
		s.pages[page]++
	}
	if rage {
		s.rageClicks++
	}
}

// RecordFrustration registers a frustration signal (e.g. rage clicks, dead
// clicks, error loops) for the periodic frustration-pattern analyzer.
func (t *Tracker) RecordFrustration(sessionID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.ensureLocked(sessionID, at)
	s.lastEventAt = at
	s.eventCount++
	s.frustrations++
}

// Score computes the weighted-composite scorecard for sessionID, normalized
// over whichever subscore dimensions have at least one observation.
func (t *Tracker) Score(sessionID string) (Scorecard, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return Scorecard{}, false
	}
	return t.scoreLocked(s), true
}

func (t *Tracker) scoreLocked(s *session) Scorecard {
	subs := make(map[string]float64, len(weights))
	var weightedSum, weightTotal float64
	for dim, w := range weights {
		if s.subscoreCount[dim] == 0 {
			continue
		}
		v := s.subscoreSum[dim]
		subs[dim] = v
		weightedSum += v * w
		weightTotal += w
	}
	overall := 0.0
	if weightTotal > 0 {
		overall = weightedSum / weightTotal
	}
	return Scorecard{
		SessionID: s.id, Overall: overall, Subscores: subs,
		ClickCount: s.clickCount, RageClicks: s.rageClicks, Frustrations: s.frustrations,
		UpdatedAt: s.lastEventAt,
	}
}

// InterestingSessions returns session ids flagged for replay selection
// (spec §4.10): more than minClicks clicks, or any rage click recorded.
func (t *Tracker) InterestingSessions(minClicks int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for id, s := range t.sessions {
		if s.clickCount > minClicks || s.rageClicks > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Scorecards returns a snapshot of every active session's scorecard, for
// the UX report / scorecard-recompute analyzers.
func (t *Tracker) Scorecards() []Scorecard {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Scorecard, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, t.scoreLocked(s))
	}
	return out
}

// PageHeatmap aggregates click counts per page across every active session,
// for the periodic heatmap-generation analyzer.
func (t *Tracker) PageHeatmap() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int)
	for _, s := range t.sessions {
		for page, n := range s.pages {
			out[page] += n
		}
	}
	return out
}

// Sweep expires sessions idle past IdleExpiry, older than MaxAge, or with
// more than MaxEventsPerSession events, and reports how many were dropped.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	dropped := 0
	for id, s := range t.sessions {
		if now.Sub(s.lastEventAt) > IdleExpiry || now.Sub(s.createdAt) > MaxAge || s.eventCount > MaxEventsPerSession {
			delete(t.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Size reports the number of currently tracked sessions.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
