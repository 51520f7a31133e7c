package protocol

import "fmt"

// ServerStats is the payload carried by EventServerStats. Both the
// broadcast side and the receiving side go through this type, so the
// field names cannot drift apart.
type ServerStats struct {
	Connections   int
	GamesServed   int64
	UptimeSeconds int64
}

const (
	statsFieldConnections = "connections"
	statsFieldGamesServed = "games_served"
	statsFieldUptime      = "uptime_seconds"
)

// StatsArgs builds the wire form of a server_stats notification.
func StatsArgs(s ServerStats) map[string]any {
	return map[string]any{
		statsFieldConnections: s.Connections,
		statsFieldGamesServed: s.GamesServed,
		statsFieldUptime:      s.UptimeSeconds,
	}
}

// DecodeServerStats validates and decodes the argument list of a
// server_stats notification.
func DecodeServerStats(args []any) (ServerStats, error) {
	if len(args) != 1 {
		return ServerStats{}, fmt.Errorf("server_stats expects 1 argument, got %d", len(args))
	}
	obj, ok := args[0].(map[string]any)
	if !ok {
		return ServerStats{}, fmt.Errorf("server_stats payload must be an object, got %T", args[0])
	}

	connections, err := intField(obj, statsFieldConnections)
	if err != nil {
		return ServerStats{}, err
	}
	gamesServed, err := intField(obj, statsFieldGamesServed)
	if err != nil {
		return ServerStats{}, err
	}
	uptime, err := intField(obj, statsFieldUptime)
	if err != nil {
		return ServerStats{}, err
	}

	return ServerStats{
		Connections:   int(connections),
		GamesServed:   gamesServed,
		UptimeSeconds: uptime,
	}, nil
}

// intField reads a numeric field. JSON numbers decode as float64;
// locally built payloads keep their integer types.
func intField(obj map[string]any, key string) (int64, error) {
	switch v := obj[key].(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("server_stats field %q missing or not a number (%T)", key, obj[key])
	}
}
