package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRoundTrip(t *testing.T) {
	stats := ServerStats{Connections: 3, GamesServed: 17, UptimeSeconds: 600}

	// Local form decodes directly.
	decoded, err := DecodeServerStats([]any{StatsArgs(stats)})
	require.NoError(t, err)
	assert.Equal(t, stats, decoded)

	// Across the wire, numbers arrive as float64.
	data, err := json.Marshal(StatsArgs(stats))
	require.NoError(t, err)
	var obj map[string]any
	require.NoError(t, json.Unmarshal(data, &obj))

	decoded, err = DecodeServerStats([]any{obj})
	require.NoError(t, err)
	assert.Equal(t, stats, decoded)
}

func TestDecodeServerStatsRejectsBadPayloads(t *testing.T) {
	cases := map[string][]any{
		"no args":       nil,
		"two args":      {map[string]any{}, map[string]any{}},
		"not an object": {"stats"},
		"missing field": {map[string]any{"connections": float64(1)}},
		"wrong type":    {map[string]any{"connections": "many", "games_served": float64(0), "uptime_seconds": float64(0)}},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeServerStats(args)
			assert.Error(t, err)
		})
	}
}

func TestCapabilitiesMirror(t *testing.T) {
	server := ServerCapabilities()
	client := ClientCapabilities()

	assert.Equal(t, server.Calls, client.CallEvents)
	assert.Equal(t, server.EmitEvents, client.Notifications)
}
