// Package protocol declares the event names exchanged between the
// Onoro server and its clients, and derives the capability set for
// each side. The two sides are mirror images: every event one side may
// call, the other declares a response handler for. Building both sets
// here keeps the pairing checked in one place instead of relying on
// each endpoint to stay in sync by hand.
package protocol

import "github.com/wfunc/onoro/socket"

const (
	// EventNewGame is called by the client; the server responds with
	// the encoded starting game state.
	EventNewGame = "new_game"
	// EventServerStats is emitted periodically by the server to every
	// connected client.
	EventServerStats = "server_stats"
)

// ServerCapabilities declares what the server-side socket may do.
func ServerCapabilities() socket.Capabilities {
	return socket.Capabilities{
		Calls:      []string{EventNewGame},
		EmitEvents: []string{EventServerStats},
	}
}

// ClientCapabilities mirrors ServerCapabilities from the client side.
func ClientCapabilities() socket.Capabilities {
	return socket.Capabilities{
		CallEvents:    []string{EventNewGame},
		Notifications: []string{EventServerStats},
	}
}
