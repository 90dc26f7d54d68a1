package handlers

import (
	"context"
	"fmt"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/corekit"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// uxSubscoreDim maps a User-experience event type onto the scorecard
// dimension it feeds (spec §4.9: "weighted subscores (performance 25%,
// usability 20%, accessibility 15%, satisfaction 25%, engagement 15%)").
// Event types with no entry here don't move a subscore directly.
var uxSubscoreDim = map[events.Type]string{
	"PAGE_LOAD":          "performance",
	"NAVIGATION":         "usability",
	"FORM_INTERACTION":   "usability",
	"JOURNEY_STEP":       "usability",
	"ACCESSIBILITY_ISSUE": "accessibility",
	"USER_FEEDBACK":      "satisfaction",
	"USER_INTERACTION":   "engagement",
	"ENGAGEMENT":         "engagement",
	"SEARCH":             "engagement",
	"SCROLL":             "engagement",
}

// UserExperienceHandler implements the User experience family (spec §4.9),
// folding per-session signals into the Session/Journey/Heatmap engine (spec
// §3) and raising alerts on frustration and accessibility signals.
type UserExperienceHandler struct {
	eng *Engines
}

// NewUserExperienceHandler builds the User experience family handler.
func NewUserExperienceHandler(eng *Engines) *UserExperienceHandler {
	return &UserExperienceHandler{eng: eng}
}

func (h *UserExperienceHandler) Family() events.Family { return events.FamilyUserExperience }

func (h *UserExperienceHandler) EventTypes() []events.Type {
	return []events.Type{
		"PAGE_LOAD", "USER_INTERACTION", "NAVIGATION", "CLIENT_ERROR", "SESSION_DATA",
		"ENGAGEMENT", "FORM_INTERACTION", "CLICKSTREAM", "JOURNEY_STEP",
		"FRUSTRATION_SIGNAL", "ACCESSIBILITY_ISSUE", "DEVICE_METRICS", "USER_FEEDBACK",
		"SEARCH", "SCROLL",
	}
}

func (h *UserExperienceHandler) Handle(ctx context.Context, env *events.Envelope) (*consumer.Outcome, error) {
	sessionID, err := requireEntity(env)
	if err != nil {
		return nil, err
	}
	p := payload(env)
	at := env.Timestamp
	if at.IsZero() {
		at = h.eng.now()
	}

	out := &consumer.Outcome{Record: NewRecord(env, sessionID, map[string]any{"event": string(env.Type)})}

	if dim, ok := uxSubscoreDim[env.Type]; ok && h.eng.UX != nil {
		h.eng.UX.Observe(sessionID, dim, corekit.GetFloat64(p, "score"), at)
	}

	switch env.Type {
	case "CLICKSTREAM":
		if h.eng.UX != nil {
			h.eng.UX.RecordClick(sessionID, corekit.GetString(p, "page"), corekit.GetBool(p, "rage"), at)
		}

	case "CLIENT_ERROR":
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "CLIENT_ERROR", Severity: alerts.Warning, EntityID: sessionID,
			Message: fmt.Sprintf("client error reported for session %s", sessionID),
		})

	case "FRUSTRATION_SIGNAL":
		if h.eng.UX != nil {
			h.eng.UX.RecordFrustration(sessionID, at)
		}
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "FRUSTRATION_DETECTED", Severity: alerts.Warning, EntityID: sessionID,
			Message: fmt.Sprintf("frustration signal for session %s", sessionID),
		})

	case "ACCESSIBILITY_ISSUE":
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "ACCESSIBILITY_ISSUE", Severity: alerts.Info, EntityID: sessionID,
			Message: fmt.Sprintf("accessibility issue reported for session %s", sessionID),
		})

	case "SESSION_DATA", "DEVICE_METRICS", "PAGE_LOAD", "USER_INTERACTION", "NAVIGATION",
		"ENGAGEMENT", "FORM_INTERACTION", "JOURNEY_STEP", "USER_FEEDBACK", "SEARCH", "SCROLL":
		// pure scorecard/session input; no alert or derived event.

	default:
		return genericFallback(env), nil
	}

	return out, nil
}
