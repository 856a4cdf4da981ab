// Package app wires the connection layer, arena, and relay together and
// enforces the command policy: a connection's first command must be join,
// everything after it must be move. The components themselves stay ignorant
// of each other beyond their small interfaces.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamelobby/arena/internal/arena"
	"github.com/gamelobby/arena/internal/protocol"
)

var (
	errAlreadyJoined = errors.New("player already joined")
	errUnknownAction = errors.New("unrecognized action")
)

// DisconnectReason is what remaining players are told when a seat drops.
const DisconnectReason = "player disconnected"

// App implements ws.Handler on top of the arena.
type App struct {
	log *logrus.Entry

	arena   *arena.Arena
	channel string

	mu     sync.Mutex
	joined map[string]bool
}

// New creates an unbound App; Bind must be called before serving.
func New(log *logrus.Entry) *App {
	return &App{log: log, joined: make(map[string]bool)}
}

// Bind attaches the arena and this process's relay channel id. Split from
// New because the connection server, relay, and arena reference each other
// in a cycle that only closes once all three exist.
func (a *App) Bind(ar *arena.Arena, channel string) {
	a.arena = ar
	a.channel = channel
}

// Connect is called for every fresh connection. Nothing to do until the
// player joins a game.
func (a *App) Connect(playerID string) {}

// Command routes one inbound client command. Any returned error becomes the
// generic error reply on that player's connection.
func (a *App) Command(ctx context.Context, playerID string, cmd protocol.ClientCommand) error {
	switch cmd.Action {
	case protocol.ActionJoin:
		a.mu.Lock()
		already := a.joined[playerID]
		a.mu.Unlock()
		if already {
			return errAlreadyJoined
		}
		if err := a.arena.Join(ctx, playerID, cmd.Game, a.channel); err != nil {
			return err
		}
		a.mu.Lock()
		a.joined[playerID] = true
		a.mu.Unlock()
		return nil
	case protocol.ActionMove:
		return a.arena.Move(ctx, playerID, cmd.Move)
	default:
		return errUnknownAction
	}
}

// Disconnect ends the player's match, if any. Runs detached from the dead
// connection's context; a disconnect is a new operation, not an abort of
// whatever the player was last doing.
func (a *App) Disconnect(playerID string) {
	a.mu.Lock()
	delete(a.joined, playerID)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.arena.Part(ctx, playerID, DisconnectReason); err != nil {
		a.log.WithError(err).WithField("player", playerID).Error("part failed")
	}
}
