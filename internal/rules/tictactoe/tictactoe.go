// Package tictactoe implements the 3x3 two-player game on the rules.Engine
// contract.
package tictactoe

import (
	"encoding/json"

	"github.com/gamelobby/arena/internal/rules"
)

const (
	size       = 3
	numPlayers = 2
	empty      = -1
)

// lines are the eight winning cell triples: rows, columns, diagonals.
var lines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// State is the full tic-tac-toe match state. Board cells hold the seat
// index of the occupying mark, or -1 when free.
type State struct {
	rules.TurnState
	Board [size][size]int `json:"board"`
}

// Base returns the generic turn bookkeeping.
func (s *State) Base() *rules.TurnState { return &s.TurnState }

// Move is a client move payload: the target cell.
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Engine implements rules.Engine for tic-tac-toe.
type Engine struct{}

func New() *Engine { return &Engine{} }

func (*Engine) NumPlayers() int { return numPlayers }

func (*Engine) NewState() rules.State {
	s := &State{}
	for r := range s.Board {
		for c := range s.Board[r] {
			s.Board[r][c] = empty
		}
	}
	first := 0
	s.Turn = &first
	return s
}

func (*Engine) DecodeState(data []byte) (rules.State, error) {
	s := &State{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (*Engine) Move(st rules.State, seat int, input json.RawMessage) error {
	s := st.(*State)
	if s.Finished || s.Turn == nil {
		return rules.Invalid("match is finished")
	}
	if *s.Turn != seat {
		return rules.Invalid("not your turn")
	}
	var mv Move
	if err := json.Unmarshal(input, &mv); err != nil {
		return rules.Invalid("malformed move")
	}
	if mv.Row < 0 || mv.Row >= size || mv.Col < 0 || mv.Col >= size {
		return rules.Invalid("space (%d,%d) is out of bounds", mv.Row, mv.Col)
	}
	if s.Board[mv.Row][mv.Col] != empty {
		return rules.Invalid("space (%d,%d) is occupied", mv.Row, mv.Col)
	}
	s.Board[mv.Row][mv.Col] = seat
	return nil
}

func (*Engine) Winner(st rules.State, seat int, input json.RawMessage) *rules.Winner {
	s := st.(*State)
	for _, line := range lines {
		a, b, c := line[0], line[1], line[2]
		mark := s.Board[a[0]][a[1]]
		if mark == empty {
			continue
		}
		if s.Board[b[0]][b[1]] == mark && s.Board[c[0]][c[1]] == mark {
			return &rules.Winner{Player: mark, Line: [][2]int{a, b, c}}
		}
	}
	return nil
}

func (*Engine) Draw(st rules.State, seat int, input json.RawMessage) bool {
	s := st.(*State)
	for r := range s.Board {
		for c := range s.Board[r] {
			if s.Board[r][c] == empty {
				return false
			}
		}
	}
	return true
}

// View returns the state unchanged; tic-tac-toe has no hidden information.
func (*Engine) View(st rules.State, seat int) rules.State { return st }
