// Command arena-server runs one matchmaking server process. Any number of
// processes may run against the same Redis; the relay routes commands to
// whichever process owns a player's socket.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamelobby/arena/internal/app"
	"github.com/gamelobby/arena/internal/arena"
	"github.com/gamelobby/arena/internal/config"
	"github.com/gamelobby/arena/internal/history"
	"github.com/gamelobby/arena/internal/relay"
	"github.com/gamelobby/arena/internal/rules"
	"github.com/gamelobby/arena/internal/rules/checkers"
	"github.com/gamelobby/arena/internal/rules/connectfour"
	"github.com/gamelobby/arena/internal/rules/tictactoe"
	"github.com/gamelobby/arena/internal/store"
	"github.com/gamelobby/arena/internal/web"
	"github.com/gamelobby/arena/internal/ws"
)

const keyPrefix = "arena:"

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	log := logrus.WithField("component", "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("store unavailable")
	}
	defer st.Close()

	registry := rules.NewRegistry(
		&rules.Game{ID: "tictactoe", Name: "Tic-Tac-Toe", Description: "Three in a row wins.", Engine: tictactoe.New()},
		&rules.Game{ID: "connectfour", Name: "Connect Four", Description: "Drop discs, four in a row wins.", Engine: connectfour.New()},
		&rules.Game{ID: "checkers", Name: "Checkers", Description: "Capture every opposing piece.", Engine: checkers.New()},
	)

	application := app.New(logrus.WithField("component", "app"))
	server := ws.NewServer(application, cfg.PingInterval, logrus.WithField("component", "ws"))
	conduit := relay.New(st, server, keyPrefix, logrus.WithField("component", "relay"))
	engine := arena.New(st, registry, conduit, keyPrefix, logrus.WithField("component", "arena"))

	if cfg.DatabaseURL != "" {
		archive, err := history.Connect(ctx, cfg.DatabaseURL, logrus.WithField("component", "history"))
		if err != nil {
			log.WithError(err).Fatal("match history unavailable")
		}
		defer archive.Close()
		engine.WithHistory(archive)
	}

	application.Bind(engine, conduit.Channel())

	go runOrDie(ctx, log, "relay", conduit.Run)
	go runOrDie(ctx, log, "arena", engine.Run)
	go runOrDie(ctx, log, "liveness", server.Run)

	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	mux.Handle("/games", web.GamesHandler(registry))

	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		server.CloseAll()
	}()

	log.WithField("addr", cfg.Addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server failed")
	}
}

// openStore picks Redis when configured, the in-process store otherwise.
func openStore(ctx context.Context, cfg config.Config, log *logrus.Entry) (store.Store, error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL unset, using in-process store; replication disabled")
		return store.NewMemoryStore(), nil
	}
	return store.NewRedisStore(ctx, cfg.RedisURL)
}

// runOrDie runs a background loop and logs when it stops for any reason
// other than shutdown.
func runOrDie(ctx context.Context, log *logrus.Entry, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).WithField("loop", name).Error("background loop stopped")
	}
}
