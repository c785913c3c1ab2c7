package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" b2 ")
	require.NoError(t, err)
	assert.Equal(t, LevelB2, l)

	_, err = ParseLevel("D1")
	assert.Error(t, err)
}

func TestLevelSteps(t *testing.T) {
	assert.Equal(t, LevelB2, LevelB1.Next())
	assert.Equal(t, LevelA2, LevelB1.Prev())
	assert.Equal(t, LevelC2, LevelC2.Next())
	assert.Equal(t, LevelA1, LevelA1.Prev())

	d, ok := LevelA2.Distance(LevelB2)
	require.True(t, ok)
	assert.Equal(t, 2, d)

	_, ok = Level("X").Distance(LevelA1)
	assert.False(t, ok)
}

func TestPayloadRoundTrip(t *testing.T) {
	payloads := []InteractionPayload{
		ViewPayload{TimeSpent: 30, Duration: 60, CompletionRate: 50},
		SkipPayload{SkipPosition: 10, TotalDuration: 180, SkipPercentage: 5.6},
		EngagementPayload{Action: "like"},
		LevelChangePayload{From: LevelB1, To: LevelB2, Reason: "upgrade"},
	}
	for _, p := range payloads {
		raw, err := MarshalPayload(p)
		require.NoError(t, err)
		got, err := UnmarshalPayload(raw)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := UnmarshalPayload([]byte(`{"kind":"nope","data":{}}`))
	assert.Error(t, err)
}

func TestBootstrapProfile(t *testing.T) {
	p := NewBootstrapProfile("u1", testNow)
	assert.Equal(t, LevelA2, p.Level)
	assert.Len(t, p.Interests, 4)
	for _, topic := range StarterInterests {
		assert.Equal(t, StarterInterestWeight, p.Interests[topic])
	}
}
