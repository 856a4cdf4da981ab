// Package arena is the matchmaking engine: it queues joining players, pairs
// them into matches once enough are waiting, applies moves through the
// generic match state machine, and pushes state updates out through the
// relay. Every mutation round-trips through the shared store before it
// counts as committed, so any number of server processes can run this code
// against the same store.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gamelobby/arena/internal/match"
	"github.com/gamelobby/arena/internal/protocol"
	"github.com/gamelobby/arena/internal/rules"
	"github.com/gamelobby/arena/internal/store"
)

// Synchronous operation failures. Rules violations surface separately as
// match.Err* sentinels and *rules.InvalidMoveError.
var (
	ErrUnknownGame      = errors.New("unknown game")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrPlayerNotInMatch = errors.New("player is not in a match")
	ErrUnknownMatch     = errors.New("unknown match")
)

// Player is the persisted player record. Channel names the process whose
// relay owns the live socket; Index and Match are assigned at match
// formation.
type Player struct {
	ID      string `json:"id"`
	Game    string `json:"game"`
	Channel string `json:"channel"`
	Index   *int   `json:"index,omitempty"`
	Match   string `json:"match,omitempty"`
}

// Sender is the relay surface the arena depends on.
type Sender interface {
	Send(ctx context.Context, playerID, playerChannel string, cmd protocol.ServerCommand) error
}

// Historian archives finished matches. A nil Historian disables archiving.
type Historian interface {
	RecordMatch(ctx context.Context, m *match.Match)
}

// Arena pairs players and relays their moves. The On* callbacks are wired
// once at startup and must not block; any left nil is skipped.
type Arena struct {
	store   store.Store
	games   *rules.Registry
	sender  Sender
	history Historian
	prefix  string
	log     *logrus.Entry

	OnJoin  func(playerID, gameID string)
	OnMatch func(gameID, matchID string, players []string)
	OnError func(err error)
}

// New builds an arena over the given store, game registry, and relay.
// keyPrefix namespaces every store key (e.g. "arena:").
func New(st store.Store, games *rules.Registry, sender Sender, keyPrefix string, log *logrus.Entry) *Arena {
	return &Arena{
		store:  st,
		games:  games,
		sender: sender,
		prefix: keyPrefix,
		log:    log,
	}
}

// WithHistory attaches a match archive.
func (a *Arena) WithHistory(h Historian) *Arena {
	a.history = h
	return a
}

func (a *Arena) playersKey() string { return a.prefix + "players" }

func (a *Arena) matchesKey() string { return a.prefix + "matches" }

func (a *Arena) queueKey() string { return a.prefix + "queue" }

func (a *Arena) waitKey(gameID string) string { return a.prefix + "queue:" + gameID }

// Join persists a new player record and appends the player to the global
// queue. An unregistered game id fails with ErrUnknownGame and leaves no
// trace in the store.
func (a *Arena) Join(ctx context.Context, playerID, gameID, channel string) error {
	if a.games.Lookup(gameID) == nil {
		return ErrUnknownGame
	}
	if err := a.putPlayer(ctx, &Player{ID: playerID, Game: gameID, Channel: channel}); err != nil {
		return err
	}
	if err := a.store.RPush(ctx, a.queueKey(), playerID); err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{"player": playerID, "game": gameID}).Info("player joined")
	if a.OnJoin != nil {
		a.OnJoin(playerID, gameID)
	}
	return nil
}

// sortRetryDelay spaces out sorter iterations after a failure so a store
// outage does not turn the loop into a hot spin.
const sortRetryDelay = time.Second

// Run drives the sorter loop: pop one id off the global queue, sort it into
// its game's wait queue, and form a match when enough players are waiting.
// A failed iteration is reported through OnError and never stops the loop;
// Run returns only when ctx is cancelled.
func (a *Arena) Run(ctx context.Context) error {
	a.log.Info("matchmaking loop running")
	for {
		if err := a.sortOne(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.reportError(fmt.Errorf("matchmaking: %w", err))
			select {
			case <-time.After(sortRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// sortOne blocks for the next joined player and files them into their
// game's wait queue, forming a match when the queue is full enough.
func (a *Arena) sortOne(ctx context.Context) error {
	playerID, err := a.store.BLPop(ctx, a.queueKey())
	if err != nil {
		return err
	}
	rec, err := a.getPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		// Player parted between queueing and sorting; nothing to do.
		return nil
	}
	if err != nil {
		return err
	}
	game := a.games.Lookup(rec.Game)
	if game == nil {
		return fmt.Errorf("queued player %s references unknown game %q", playerID, rec.Game)
	}
	if err := a.store.RPush(ctx, a.waitKey(rec.Game), playerID); err != nil {
		return err
	}
	waiting, err := a.store.LLen(ctx, a.waitKey(rec.Game))
	if err != nil {
		return err
	}
	if waiting < int64(game.NumPlayers) {
		return nil
	}
	return a.formMatch(ctx, game)
}

// formMatch pops exactly NumPlayers ids off the game's wait queue (oldest
// first) and seats them. The pops never block: another process that saw the
// same full queue may already have taken some of the ids, and a short pop
// is handled exactly like a vanished player record — whatever we popped
// goes back onto the global queue and the attempt is abandoned without
// error; the retry is idempotent.
func (a *Arena) formMatch(ctx context.Context, game *rules.Game) error {
	ids := make([]string, 0, game.NumPlayers)
	for len(ids) < game.NumPlayers {
		id, err := a.store.LPop(ctx, a.waitKey(game.ID))
		if err != nil {
			// Re-queue what we already popped so nobody is stranded.
			if len(ids) > 0 {
				_ = a.store.RPush(context.WithoutCancel(ctx), a.queueKey(), ids...)
			}
			if errors.Is(err, store.ErrNotFound) {
				a.log.WithField("game", game.ID).Debug("abandoning match formation, wait queue ran short")
				return nil
			}
			return err
		}
		ids = append(ids, id)
	}

	players := make([]*Player, len(ids))
	for i, id := range ids {
		rec, err := a.getPlayer(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			survivors := append(append([]string(nil), ids[:i]...), ids[i+1:]...)
			if len(survivors) > 0 {
				if err := a.store.RPush(ctx, a.queueKey(), survivors...); err != nil {
					return err
				}
			}
			a.log.WithField("player", id).Debug("abandoning match formation, player left while queued")
			return nil
		}
		if err != nil {
			return err
		}
		players[i] = rec
	}

	m := match.New(uuid.NewString(), game, ids)
	for i, rec := range players {
		seat := i
		rec.Index = &seat
		rec.Match = m.ID
		if err := a.putPlayer(ctx, rec); err != nil {
			return err
		}
	}
	if err := a.putMatch(ctx, m); err != nil {
		return err
	}

	a.log.WithFields(logrus.Fields{"game": game.ID, "match": m.ID, "players": ids}).Info("match formed")
	if a.OnMatch != nil {
		a.OnMatch(game.ID, m.ID, ids)
	}
	a.pushUpdates(ctx, game, m, players)
	return nil
}

// Move applies a player's move to their match, persists the result, and
// fans out per-seat state updates.
func (a *Arena) Move(ctx context.Context, playerID string, input json.RawMessage) error {
	rec, err := a.getPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownPlayer
	}
	if err != nil {
		return err
	}
	if rec.Match == "" || rec.Index == nil {
		return ErrPlayerNotInMatch
	}
	m, err := a.getMatch(ctx, rec.Match)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownMatch
	}
	if err != nil {
		return err
	}
	game := a.games.Lookup(m.Game)
	if game == nil {
		return ErrUnknownMatch
	}
	if err := m.Apply(game.Engine, *rec.Index, input); err != nil {
		return err
	}
	if err := a.putMatch(ctx, m); err != nil {
		return err
	}
	a.pushUpdates(ctx, game, m, nil)
	if m.Finished() && a.history != nil {
		go func(rec *match.Match) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.history.RecordMatch(ctx, rec)
		}(m)
	}
	return nil
}

// Part removes a departing player. It is idempotent: an unknown player is a
// silent no-op, since the disconnect of an already-gone player is an
// expected race. A departure from an unfinished match sends an end command
// with the reason to every other seat and destroys the match record; the
// player's own record is always deleted.
func (a *Arena) Part(ctx context.Context, playerID, reason string) error {
	rec, err := a.getPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Match != "" {
		m, err := a.getMatch(ctx, rec.Match)
		if err == nil {
			if !m.Finished() {
				end := protocol.End(reason)
				for _, otherID := range m.Players {
					if otherID == playerID {
						continue
					}
					other, err := a.getPlayer(ctx, otherID)
					if err != nil {
						continue
					}
					if err := a.sender.Send(ctx, otherID, other.Channel, end); err != nil {
						a.reportError(fmt.Errorf("send end to %s: %w", otherID, err))
					}
				}
			}
			if err := a.store.HDel(ctx, a.matchesKey(), m.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if err := a.store.HDel(ctx, a.playersKey(), playerID); err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{"player": playerID, "reason": reason}).Info("player parted")
	return nil
}

// Clear wipes all queues and all player records. Used to reset state for
// tests and cold starts, never in normal operation.
func (a *Arena) Clear(ctx context.Context) error {
	keys := []string{a.queueKey(), a.playersKey()}
	for _, g := range a.games.All() {
		keys = append(keys, a.waitKey(g.ID))
	}
	return a.store.Del(ctx, keys...)
}

// pushUpdates sends every seated player their own view of the match state.
// seated may carry already-loaded records in seat order; nil means fetch.
// Delivery is best-effort: a missing record or send failure affects only
// that seat.
func (a *Arena) pushUpdates(ctx context.Context, game *rules.Game, m *match.Match, seated []*Player) {
	for seat, playerID := range m.Players {
		var rec *Player
		if seated != nil {
			rec = seated[seat]
		} else {
			var err error
			rec, err = a.getPlayer(ctx, playerID)
			if err != nil {
				continue
			}
		}
		view, err := json.Marshal(game.Engine.View(m.State, seat))
		if err != nil {
			a.reportError(fmt.Errorf("encode view for seat %d of %s: %w", seat, m.ID, err))
			continue
		}
		if err := a.sender.Send(ctx, playerID, rec.Channel, protocol.Update(seat, view)); err != nil {
			a.reportError(fmt.Errorf("send update to %s: %w", playerID, err))
		}
	}
}

func (a *Arena) getPlayer(ctx context.Context, id string) (*Player, error) {
	raw, err := a.store.HGet(ctx, a.playersKey(), id)
	if err != nil {
		return nil, err
	}
	rec := &Player{}
	if err := json.Unmarshal([]byte(raw), rec); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", id, err)
	}
	return rec, nil
}

func (a *Arena) putPlayer(ctx context.Context, rec *Player) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return a.store.HSet(ctx, a.playersKey(), rec.ID, string(raw))
}

func (a *Arena) getMatch(ctx context.Context, id string) (*match.Match, error) {
	raw, err := a.store.HGet(ctx, a.matchesKey(), id)
	if err != nil {
		return nil, err
	}
	return match.Decode([]byte(raw), a.games)
}

func (a *Arena) putMatch(ctx context.Context, m *match.Match) error {
	raw, err := match.Encode(m)
	if err != nil {
		return err
	}
	return a.store.HSet(ctx, a.matchesKey(), m.ID, string(raw))
}

func (a *Arena) reportError(err error) {
	a.log.WithError(err).Error("arena error")
	if a.OnError != nil {
		a.OnError(err)
	}
}
