// Package rules defines the pluggable per-game contract the arena depends
// on: state creation, move validation/application, and win/draw detection.
// The generic turn machinery lives in package match; each game variant only
// supplies the board geometry behind this interface.
package rules

import (
	"encoding/json"
	"fmt"
)

// Winner identifies the winning seat and, where the game has one, the line
// of cells that decided it.
type Winner struct {
	Player int      `json:"player"`
	Line   [][2]int `json:"line,omitempty"`
}

// TurnState is the generic slice of a match state owned by the match state
// machine. Turn is the seat index whose move is expected next, or nil once
// the match has finished.
type TurnState struct {
	Turn     *int    `json:"turn"`
	Finished bool    `json:"finished"`
	Winner   *Winner `json:"winner,omitempty"`
}

// State is a game's match state. The arena treats it as opaque; only the
// embedded TurnState is touched by generic code. Concrete states must
// round-trip through encoding/json unchanged.
type State interface {
	Base() *TurnState
}

// Engine is the contract a game variant implements.
//
// Move is the only method allowed to reject a move; it mutates the state to
// reflect an accepted input and returns *InvalidMoveError for anything the
// game's rules forbid (wrong turn, occupied space, out of bounds, move
// after finish). Winner and Draw inspect the state after Move succeeded,
// with the accepted input at hand. View produces the state as a given seat
// is allowed to see it; games without hidden information return the state
// unchanged.
type Engine interface {
	NumPlayers() int
	NewState() State
	DecodeState(data []byte) (State, error)
	Move(s State, seat int, input json.RawMessage) error
	Winner(s State, seat int, input json.RawMessage) *Winner
	Draw(s State, seat int, input json.RawMessage) bool
	View(s State, seat int) State
}

// InvalidMoveError reports a move the game's rules rejected. The reason is
// game-specific and carried through to arena callers.
type InvalidMoveError struct {
	Reason string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid move: %s", e.Reason)
}

// Invalid builds an *InvalidMoveError with the given reason.
func Invalid(format string, args ...any) error {
	return &InvalidMoveError{Reason: fmt.Sprintf(format, args...)}
}
