package checkers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamelobby/arena/internal/rules"
)

func mv(t *testing.T, fr, fc, tr, tc int) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(Move{From: [2]int{fr, fc}, To: [2]int{tr, tc}})
	require.NoError(t, err)
	return data
}

// clearBoard empties the board so tests can place exactly the pieces they
// need. Turn stays on seat 0.
func clearBoard(s *State) {
	for r := range s.Board {
		for c := range s.Board[r] {
			s.Board[r][c] = empty
		}
	}
}

func setTurn(s *State, seat int) {
	s.Turn = &seat
}

func TestNewStateSetup(t *testing.T) {
	s := New().NewState().(*State)
	assert.Equal(t, perSide, countPieces(s, 0))
	assert.Equal(t, perSide, countPieces(s, 1))
	// Pieces only on dark squares, seat 0 in the top three rows.
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			if (r+c)%2 == 0 {
				assert.Equal(t, empty, s.Board[r][c])
			}
		}
	}
	assert.Equal(t, 0, s.Board[0][1])
	assert.Equal(t, 1, s.Board[7][0])
}

func TestSimpleStepAndDirection(t *testing.T) {
	eng := New()
	s := eng.NewState().(*State)

	require.NoError(t, eng.Move(s, 0, mv(t, 2, 1, 3, 2)))
	assert.Equal(t, empty, s.Board[2][1])
	assert.Equal(t, 0, s.Board[3][2])

	// Men cannot retreat.
	setTurn(s, 0)
	err := eng.Move(s, 0, mv(t, 3, 2, 2, 1))
	var inv *rules.InvalidMoveError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "men cannot move backwards", inv.Reason)

	// Seat 1 advances up the board.
	setTurn(s, 1)
	require.NoError(t, eng.Move(s, 1, mv(t, 5, 0, 4, 1)))
	assert.Equal(t, 1, s.Board[4][1])
}

func TestJumpCaptures(t *testing.T) {
	eng := New()
	s := eng.NewState().(*State)
	clearBoard(s)
	s.Board[3][2] = 0
	s.Board[4][3] = 1
	setTurn(s, 0)

	require.NoError(t, eng.Move(s, 0, mv(t, 3, 2, 5, 4)))
	assert.Equal(t, empty, s.Board[4][3], "jumped piece is captured")
	assert.Equal(t, 0, s.Board[5][4])
	assert.Equal(t, 0, countPieces(s, 1))
}

func TestJumpMustCapture(t *testing.T) {
	eng := New()
	s := eng.NewState().(*State)
	clearBoard(s)
	s.Board[3][2] = 0
	s.Board[4][3] = 0 // own piece in between
	setTurn(s, 0)

	var inv *rules.InvalidMoveError
	err := eng.Move(s, 0, mv(t, 3, 2, 5, 4))
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "jumps must capture an opponent piece", inv.Reason)

	s.Board[4][3] = empty
	err = eng.Move(s, 0, mv(t, 3, 2, 5, 4))
	require.ErrorAs(t, err, &inv)
}

func TestKingingAndKingMoves(t *testing.T) {
	eng := New()
	s := eng.NewState().(*State)
	clearBoard(s)
	s.Board[6][1] = 0
	s.Board[0][0] = 1 // keep seat 1 alive
	setTurn(s, 0)

	require.NoError(t, eng.Move(s, 0, mv(t, 6, 1, 7, 2)))
	assert.Equal(t, 0+kingOffset, s.Board[7][2], "man is crowned on the far rank")

	// Kings move backwards.
	setTurn(s, 0)
	require.NoError(t, eng.Move(s, 0, mv(t, 7, 2, 6, 3)))
	assert.Equal(t, 0+kingOffset, s.Board[6][3])
}

func TestRejectedMoves(t *testing.T) {
	eng := New()
	s := eng.NewState().(*State)

	cases := []struct {
		name string
		seat int
		move json.RawMessage
	}{
		{"wrong turn", 1, mv(t, 5, 0, 4, 1)},
		{"not your piece", 0, mv(t, 5, 0, 4, 1)},
		{"empty source", 0, mv(t, 3, 0, 4, 1)},
		{"occupied target", 0, mv(t, 1, 0, 2, 1)},
		{"straight move", 0, mv(t, 2, 1, 3, 1)},
		{"too far", 0, mv(t, 2, 1, 5, 4)},
		{"out of bounds", 0, mv(t, 2, 7, 3, 8)},
		{"malformed", 0, json.RawMessage(`17`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := eng.Move(s, tc.seat, tc.move)
			var inv *rules.InvalidMoveError
			assert.ErrorAs(t, err, &inv)
		})
	}
}

func TestWinnerOnLastCapture(t *testing.T) {
	eng := New()
	s := eng.NewState().(*State)
	clearBoard(s)
	s.Board[3][2] = 0
	s.Board[4][3] = 1
	setTurn(s, 0)
	require.NoError(t, eng.Move(s, 0, mv(t, 3, 2, 5, 4)))

	w := eng.Winner(s, 0, nil)
	require.NotNil(t, w)
	assert.Equal(t, 0, w.Player)
}

func TestWinnerWhenOpponentBlocked(t *testing.T) {
	eng := New()
	s := eng.NewState().(*State)
	clearBoard(s)
	// Seat 1's lone man in the corner with both diagonals dead: (6,1) is
	// occupied by seat 0 and the jump square (5,2) occupied too.
	s.Board[7][0] = 1
	s.Board[6][1] = 0
	s.Board[5][2] = 0
	s.Board[0][1] = 0

	require.Nil(t, eng.Winner(s, 1, nil), "seat 0 still has moves")
	w := eng.Winner(s, 0, nil)
	require.NotNil(t, w)
	assert.Equal(t, 0, w.Player)
}

func TestNoDraws(t *testing.T) {
	eng := New()
	assert.False(t, eng.Draw(eng.NewState(), 0, nil))
}
