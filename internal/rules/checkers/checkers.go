// Package checkers implements 8x8 draughts on the rules.Engine contract:
// diagonal steps, single jumps with capture, and kinging on the far rank.
// Captures are not forced and multi-jumps are played as separate moves.
package checkers

import (
	"encoding/json"

	"github.com/gamelobby/arena/internal/rules"
)

const (
	size       = 8
	numPlayers = 2
	empty      = -1
	perSide    = 12
)

// Cells hold -1 when free, the seat index for a man, and seat+2 for a king.
const kingOffset = 2

func owner(cell int) int { return cell % kingOffset }

func isKing(cell int) bool { return cell >= kingOffset }

// State is the full checkers match state. Board is indexed [row][col]; seat
// 0 starts on rows 0-2 and advances down the board, seat 1 on rows 5-7
// advancing up.
type State struct {
	rules.TurnState
	Board [size][size]int `json:"board"`
}

// Base returns the generic turn bookkeeping.
func (s *State) Base() *rules.TurnState { return &s.TurnState }

// Move is a client move payload: source and destination cells as [row, col].
type Move struct {
	From [2]int `json:"from"`
	To   [2]int `json:"to"`
}

// Engine implements rules.Engine for checkers.
type Engine struct{}

func New() *Engine { return &Engine{} }

func (*Engine) NumPlayers() int { return numPlayers }

func (*Engine) NewState() rules.State {
	s := &State{}
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			s.Board[r][c] = empty
			if (r+c)%2 == 1 {
				switch {
				case r < 3:
					s.Board[r][c] = 0
				case r >= size-3:
					s.Board[r][c] = 1
				}
			}
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
	fr, fc, tr, tc := mv.From[0], mv.From[1], mv.To[0], mv.To[1]
	if !inBounds(fr, fc) || !inBounds(tr, tc) {
		return rules.Invalid("square is out of bounds")
	}
	piece := s.Board[fr][fc]
	if piece == empty || owner(piece) != seat {
		return rules.Invalid("no piece of yours on (%d,%d)", fr, fc)
	}
	if s.Board[tr][tc] != empty {
		return rules.Invalid("square (%d,%d) is occupied", tr, tc)
	}
	dr, dc := tr-fr, tc-fc
	if abs(dc) != abs(dr) || (abs(dr) != 1 && abs(dr) != 2) {
		return rules.Invalid("pieces move diagonally by one square, or two when jumping")
	}
	if !isKing(piece) && dr != forward(seat)*abs(dr) {
		return rules.Invalid("men cannot move backwards")
	}
	if abs(dr) == 2 {
		jr, jc := fr+dr/2, fc+dc/2
		jumped := s.Board[jr][jc]
		if jumped == empty || owner(jumped) == seat {
			return rules.Invalid("jumps must capture an opponent piece")
		}
		s.Board[jr][jc] = empty
	}
	s.Board[fr][fc] = empty
	s.Board[tr][tc] = piece
	if !isKing(piece) && tr == kingRow(seat) {
		s.Board[tr][tc] = seat + kingOffset
	}
	return nil
}

func (e *Engine) Winner(st rules.State, seat int, input json.RawMessage) *rules.Winner {
	s := st.(*State)
	opp := 1 - seat
	if countPieces(s, opp) == 0 || !hasMove(s, opp) {
		return &rules.Winner{Player: seat}
	}
	return nil
}

func (*Engine) Draw(st rules.State, seat int, input json.RawMessage) bool {
	return false
}

// View returns the state unchanged; checkers has no hidden information.
func (*Engine) View(st rules.State, seat int) rules.State { return st }

// forward is the row direction a seat's men advance in.
func forward(seat int) int {
	if seat == 0 {
		return 1
	}
	return -1
}

// kingRow is the far rank where a seat's men are crowned.
func kingRow(seat int) int {
	if seat == 0 {
		return size - 1
	}
	return 0
}

func inBounds(r, c int) bool {
	return r >= 0 && r < size && c >= 0 && c < size
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func countPieces(s *State, seat int) int {
	n := 0
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			if s.Board[r][c] != empty && owner(s.Board[r][c]) == seat {
				n++
			}
		}
	}
	return n
}

// hasMove reports whether seat has at least one legal step or jump.
func hasMove(s *State, seat int) bool {
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			piece := s.Board[r][c]
			if piece == empty || owner(piece) != seat {
				continue
			}
			dirs := [][2]int{{forward(seat), 1}, {forward(seat), -1}}
			if isKing(piece) {
				dirs = append(dirs, [2]int{-forward(seat), 1}, [2]int{-forward(seat), -1})
			}
			for _, d := range dirs {
				sr, sc := r+d[0], c+d[1]
				if inBounds(sr, sc) && s.Board[sr][sc] == empty {
					return true
				}
				jr, jc := r+2*d[0], c+2*d[1]
				if inBounds(jr, jc) && s.Board[jr][jc] == empty &&
					inBounds(sr, sc) && s.Board[sr][sc] != empty && owner(s.Board[sr][sc]) != seat {
					return true
				}
			}
		}
	}
	return false
}
