// Package protocol defines the JSON commands exchanged with clients over a
// persistent message connection, and the envelope the relay uses to carry a
// command across processes.
package protocol

import "encoding/json"

// Client->server actions.
const (
	ActionJoin = "join"
	ActionMove = "move"
)

// Server->client actions.
const (
	ActionUpdate = "update"
	ActionEnd    = "end"
)

// ErrUnableToPerform is the only error text clients ever see. The internal
// failure taxonomy is intentionally not leaked to the wire.
const ErrUnableToPerform = "unable to perform command"

// ClientCommand is a decoded client->server message.
type ClientCommand struct {
	Action string          `json:"action"`
	Game   string          `json:"game,omitempty"`
	Move   json.RawMessage `json:"move,omitempty"`
}

// ServerCommand is a server->client message. Exactly one of Action or Error
// is set: Action for update/end commands, Error for the generic rejection.
type ServerCommand struct {
	Action string          `json:"action,omitempty"`
	Player *int            `json:"player,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Update builds an update command carrying seat's view of the match state.
func Update(seat int, state json.RawMessage) ServerCommand {
	return ServerCommand{Action: ActionUpdate, Player: &seat, State: state}
}

// End builds an end command with the given reason.
func End(reason string) ServerCommand {
	return ServerCommand{Action: ActionEnd, Reason: reason}
}

// ErrorReply builds the generic error reply.
func ErrorReply() ServerCommand {
	return ServerCommand{Error: ErrUnableToPerform}
}

// Envelope addresses a ServerCommand to a single player. The relay publishes
// it on the channel of whichever process owns the player's socket.
type Envelope struct {
	Player  string        `json:"player"`
	Command ServerCommand `json:"command"`
}
