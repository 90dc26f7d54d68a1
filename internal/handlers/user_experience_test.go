package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/uxscore"
)

func TestUserExperienceHandler_PageLoadFeedsPerformanceSubscore(t *testing.T) {
	eng := &Engines{UX: uxscore.New(), Now: time.Now}
	h := NewUserExperienceHandler(eng)

	_, err := h.Handle(context.Background(), envelope(events.FamilyUserExperience, "PAGE_LOAD", "sess-1",
		map[string]any{"score": 80.0}))
	require.NoError(t, err)

	card, ok := eng.UX.Score("sess-1")
	require.True(t, ok)
	assert.InDelta(t, 80.0, card.Subscores["performance"], 0.001)
}

func TestUserExperienceHandler_ClickstreamRecordsClicks(t *testing.T) {
	eng := &Engines{UX: uxscore.New(), Now: time.Now}
	h := NewUserExperienceHandler(eng)

	for i := 0; i < 51; i++ {
		_, err := h.Handle(context.Background(), envelope(events.FamilyUserExperience, "CLICKSTREAM", "sess-2",
			map[string]any{"page": "/home"}))
		require.NoError(t, err)
	}

	interesting := eng.UX.InterestingSessions(50)
	assert.Contains(t, interesting, "sess-2")
}

func TestUserExperienceHandler_FrustrationSignalRaisesAlert(t *testing.T) {
	eng := &Engines{UX: uxscore.New(), Now: time.Now}
	h := NewUserExperienceHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyUserExperience, "FRUSTRATION_SIGNAL", "sess-3", nil))
	require.NoError(t, err)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, "FRUSTRATION_DETECTED", out.Alerts[0].Type)
}
