package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamelobby/arena/internal/arena"
	"github.com/gamelobby/arena/internal/protocol"
	"github.com/gamelobby/arena/internal/rules"
	"github.com/gamelobby/arena/internal/rules/tictactoe"
	"github.com/gamelobby/arena/internal/store"
)

type nullSender struct{}

func (nullSender) Send(ctx context.Context, playerID, playerChannel string, cmd protocol.ServerCommand) error {
	return nil
}

func setupApp(t *testing.T) (*App, *arena.Arena, *store.MemoryStore) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(log)

	st := store.NewMemoryStore()
	reg := rules.NewRegistry(&rules.Game{ID: "tictactoe", Name: "Tic-Tac-Toe", Engine: tictactoe.New()})
	ar := arena.New(st, reg, nullSender{}, "arena:", entry)

	a := New(entry)
	a.Bind(ar, "proc-1")
	return a, ar, st
}

func TestJoinThenDoubleJoinRejected(t *testing.T) {
	a, _, st := setupApp(t)
	ctx := context.Background()

	require.NoError(t, a.Command(ctx, "p1", protocol.ClientCommand{Action: protocol.ActionJoin, Game: "tictactoe"}))

	raw, err := st.HGet(ctx, "arena:players", "p1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"channel":"proc-1"`)

	err = a.Command(ctx, "p1", protocol.ClientCommand{Action: protocol.ActionJoin, Game: "tictactoe"})
	assert.Error(t, err)
}

func TestJoinUnknownGameDoesNotMarkJoined(t *testing.T) {
	a, _, _ := setupApp(t)
	ctx := context.Background()

	err := a.Command(ctx, "p1", protocol.ClientCommand{Action: protocol.ActionJoin, Game: "quidditch"})
	assert.ErrorIs(t, err, arena.ErrUnknownGame)

	// The failed join leaves the slot free for a valid one.
	require.NoError(t, a.Command(ctx, "p1", protocol.ClientCommand{Action: protocol.ActionJoin, Game: "tictactoe"}))
}

func TestMoveWithoutMatch(t *testing.T) {
	a, _, _ := setupApp(t)
	ctx := context.Background()

	err := a.Command(ctx, "p1", protocol.ClientCommand{Action: protocol.ActionMove, Move: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, arena.ErrUnknownPlayer)
}

func TestUnknownActionRejected(t *testing.T) {
	a, _, _ := setupApp(t)
	err := a.Command(context.Background(), "p1", protocol.ClientCommand{Action: "dance"})
	assert.Error(t, err)
}

func TestDisconnectPartsAndFreesSlot(t *testing.T) {
	a, _, st := setupApp(t)
	ctx := context.Background()

	require.NoError(t, a.Command(ctx, "p1", protocol.ClientCommand{Action: protocol.ActionJoin, Game: "tictactoe"}))
	a.Disconnect("p1")

	require.Eventually(t, func() bool {
		_, err := st.HGet(ctx, "arena:players", "p1")
		return err != nil
	}, time.Second, 10*time.Millisecond)

	// The id can join again after disconnecting.
	require.NoError(t, a.Command(ctx, "p1", protocol.ClientCommand{Action: protocol.ActionJoin, Game: "tictactoe"}))
}

func TestDisconnectNeverJoinedIsNoOp(t *testing.T) {
	a, _, _ := setupApp(t)
	a.Disconnect("ghost")
}
