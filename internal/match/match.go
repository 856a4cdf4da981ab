// Package match holds the persisted match record and the generic turn-taking
// state machine every game variant plugs into. The machine owns turn order
// and finish detection; everything board-specific is delegated to the game's
// rules.Engine.
package match

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gamelobby/arena/internal/rules"
)

// Move acceptance failures, in the order they are checked. Out-of-turn moves
// are rejected before the game's rules are ever consulted.
var (
	ErrMatchFinished      = errors.New("match is finished")
	ErrOutOfTurnFirstMove = errors.New("the first move belongs to seat 0")
	ErrOutOfTurnRepeat    = errors.New("a seat cannot move twice in a row")
)

// Move is a single accepted move: the seat index stamped by the state
// machine (never trusted from the client) plus the game-specific payload.
type Move struct {
	Player int             `json:"player"`
	Input  json.RawMessage `json:"input"`
}

// Match is the persisted record of one running or finished match.
// Players lists player ids in seat order; Moves is append-only.
type Match struct {
	ID      string      `json:"id"`
	Game    string      `json:"game"`
	Start   time.Time   `json:"start"`
	Players []string    `json:"players"`
	Moves   []Move      `json:"moves"`
	State   rules.State `json:"state"`
}

// New builds a fresh match for the given game with players seated in order.
func New(id string, game *rules.Game, players []string) *Match {
	return &Match{
		ID:      id,
		Game:    game.ID,
		Start:   time.Now().UTC(),
		Players: append([]string(nil), players...),
		Moves:   []Move{},
		State:   game.Engine.NewState(),
	}
}

// Apply runs the move-acceptance algorithm for seat's input. The checks run
// strictly in order: finished match, first-move seat, repeat seat, then the
// engine's own validation. On any failure the move list and state are left
// untouched as far as this machine is concerned; only an accepted move is
// stamped and appended, after which winner/draw are recomputed and the turn
// advances round-robin.
func (m *Match) Apply(eng rules.Engine, seat int, input json.RawMessage) error {
	st := m.State.Base()
	if st.Finished {
		return ErrMatchFinished
	}
	if len(m.Moves) == 0 && seat != 0 {
		return ErrOutOfTurnFirstMove
	}
	if len(m.Moves) > 0 && eng.NumPlayers() > 1 && m.Moves[len(m.Moves)-1].Player == seat {
		return ErrOutOfTurnRepeat
	}
	if err := eng.Move(m.State, seat, input); err != nil {
		return err
	}
	m.Moves = append(m.Moves, Move{Player: seat, Input: input})
	if w := eng.Winner(m.State, seat, input); w != nil {
		st.Winner = w
		st.Finished = true
		st.Turn = nil
	} else if eng.Draw(m.State, seat, input) {
		st.Finished = true
		st.Turn = nil
	} else {
		next := (seat + 1) % eng.NumPlayers()
		st.Turn = &next
	}
	return nil
}

// Finished reports whether the match has reached its terminal state.
func (m *Match) Finished() bool {
	return m.State.Base().Finished
}

// Seat returns the seat index of a player id, or -1 if not seated.
func (m *Match) Seat(playerID string) int {
	for i, id := range m.Players {
		if id == playerID {
			return i
		}
	}
	return -1
}

// record is the wire form of a Match; State stays raw until the game's
// engine can give it a concrete type.
type record struct {
	ID      string          `json:"id"`
	Game    string          `json:"game"`
	Start   time.Time       `json:"start"`
	Players []string        `json:"players"`
	Moves   []Move          `json:"moves"`
	State   json.RawMessage `json:"state"`
}

// Encode serializes the match for the shared store.
func Encode(m *Match) ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserializes a match, resolving the opaque state through the
// game's engine looked up in the registry.
func Decode(data []byte, reg *rules.Registry) (*Match, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	game := reg.Lookup(rec.Game)
	if game == nil {
		return nil, errors.New("match references unregistered game " + rec.Game)
	}
	state, err := game.Engine.DecodeState(rec.State)
	if err != nil {
		return nil, err
	}
	return &Match{
		ID:      rec.ID,
		Game:    rec.Game,
		Start:   rec.Start,
		Players: rec.Players,
		Moves:   rec.Moves,
		State:   state,
	}, nil
}
