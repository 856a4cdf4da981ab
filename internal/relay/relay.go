// Package relay delivers outbound commands to players regardless of which
// server process owns their socket. Each process claims one pub/sub channel
// at startup; commands for locally-owned sockets are handed straight to the
// connection layer, everything else is published on the owning process's
// channel. The arena only ever says "send to this player" and never learns
// where the socket lives.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gamelobby/arena/internal/protocol"
	"github.com/gamelobby/arena/internal/store"
)

// LocalSender is the slice of the connection layer the relay needs: hand a
// command to a player's locally-owned socket. Delivery to a player who has
// already disconnected is a no-op.
type LocalSender interface {
	Deliver(playerID string, cmd protocol.ServerCommand)
}

// Relay routes (player, command) pairs across process boundaries.
type Relay struct {
	store   store.Store
	local   LocalSender
	channel string
	prefix  string
	log     *logrus.Entry
}

// New creates a relay with a freshly generated process channel id.
func New(st store.Store, local LocalSender, keyPrefix string, log *logrus.Entry) *Relay {
	return &Relay{
		store:   st,
		local:   local,
		channel: uuid.NewString(),
		prefix:  keyPrefix,
		log:     log,
	}
}

// Channel returns this process's channel id. Players connected to this
// process are stamped with it so any process can route commands back here.
func (r *Relay) Channel() string { return r.channel }

// Send delivers cmd to the player whose socket lives on playerChannel:
// locally when that is our own channel, otherwise by publishing the
// serialized envelope on the owning process's channel.
func (r *Relay) Send(ctx context.Context, playerID, playerChannel string, cmd protocol.ServerCommand) error {
	if playerChannel == r.channel {
		r.local.Deliver(playerID, cmd)
		return nil
	}
	payload, err := json.Marshal(protocol.Envelope{Player: playerID, Command: cmd})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.store.Publish(ctx, r.prefix+"channel:"+playerChannel, string(payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", playerChannel, err)
	}
	return nil
}

// Run subscribes to this process's channel and hands every published
// envelope to the local connection layer, exactly as a local delivery would
// be handled. It returns when ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.store.Subscribe(ctx, r.prefix+"channel:"+r.channel)
	if err != nil {
		return fmt.Errorf("subscribe own channel: %w", err)
	}
	defer sub.Close()

	r.log.WithField("channel", r.channel).Info("relay listening")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			var env protocol.Envelope
			if err := json.Unmarshal([]byte(msg), &env); err != nil {
				r.log.WithError(err).Warn("dropping malformed relay envelope")
				continue
			}
			r.local.Deliver(env.Player, env.Command)
		}
	}
}
