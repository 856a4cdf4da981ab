// Package connectfour implements the 7x6 two-player drop-disc game on the
// rules.Engine contract.
package connectfour

import (
	"encoding/json"

	"github.com/gamelobby/arena/internal/rules"
)

const (
	cols       = 7
	rows       = 6
	winLen     = 4
	numPlayers = 2
	empty      = -1
)

// State is the full connect-four match state. Board is indexed [row][col]
// with row 0 at the top; cells hold the seat index or -1 when free.
type State struct {
	rules.TurnState
	Board [rows][cols]int `json:"board"`
}

// Base returns the generic turn bookkeeping.
func (s *State) Base() *rules.TurnState { return &s.TurnState }

// Move is a client move payload: the column to drop into.
type Move struct {
	Column int `json:"column"`
}

// Engine implements rules.Engine for connect-four.
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
	if mv.Column < 0 || mv.Column >= cols {
		return rules.Invalid("column %d is out of bounds", mv.Column)
	}
	if drop(s, mv.Column, seat) < 0 {
		return rules.Invalid("no spaces available in column")
	}
	return nil
}

// drop places seat's disc in the lowest free row of col and returns the
// row, or -1 when the column is full.
func drop(s *State, col, seat int) int {
	for r := rows - 1; r >= 0; r-- {
		if s.Board[r][col] == empty {
			s.Board[r][col] = seat
			return r
		}
	}
	return -1
}

func (*Engine) Winner(st rules.State, seat int, input json.RawMessage) *rules.Winner {
	s := st.(*State)
	var mv Move
	if err := json.Unmarshal(input, &mv); err != nil {
		return nil
	}
	// The accepted disc sits in the highest occupied row of its column.
	row := -1
	for r := 0; r < rows; r++ {
		if s.Board[r][mv.Column] != empty {
			row = r
			break
		}
	}
	if row < 0 {
		return nil
	}
	if line := lineThrough(s, row, mv.Column); line != nil {
		return &rules.Winner{Player: s.Board[row][mv.Column], Line: line}
	}
	return nil
}

// lineThrough returns the cells of a winning line through (row,col), or nil.
// Checks the four directions by extending both ways from the placed disc.
func lineThrough(s *State, row, col int) [][2]int {
	mark := s.Board[row][col]
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		cells := [][2]int{{row, col}}
		for r, c := row+d[0], col+d[1]; r >= 0 && r < rows && c >= 0 && c < cols && s.Board[r][c] == mark; r, c = r+d[0], c+d[1] {
			cells = append(cells, [2]int{r, c})
		}
		for r, c := row-d[0], col-d[1]; r >= 0 && r < rows && c >= 0 && c < cols && s.Board[r][c] == mark; r, c = r-d[0], c-d[1] {
			cells = append([][2]int{{r, c}}, cells...)
		}
		if len(cells) >= winLen {
			return cells
		}
	}
	return nil
}

func (*Engine) Draw(st rules.State, seat int, input json.RawMessage) bool {
	s := st.(*State)
	for c := 0; c < cols; c++ {
		if s.Board[0][c] == empty {
			return false
		}
	}
	return true
}

// View returns the state unchanged; connect-four has no hidden information.
func (*Engine) View(st rules.State, seat int) rules.State { return st }
