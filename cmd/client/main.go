package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/vibeparty/vibeparty/internal/config"
	"github.com/vibeparty/vibeparty/internal/session"
	"github.com/vibeparty/vibeparty/internal/store"
	"github.com/vibeparty/vibeparty/internal/transport"
)

const version = "v0.3.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		roomFlag    = flag.String("room", "", "Room id to join (overrides VIBEPARTY_ROOM)")
		nameFlag    = flag.String("name", "", "Display name (overrides VIBEPARTY_NAME)")
		serverFlag  = flag.String("server", "", "Server websocket URL (overrides VIBEPARTY_SERVER_URL)")
		offline     = flag.Bool("offline", false, "Run fully offline (simulated room, no server)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`VibeParty client - headless party game session

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --room ID       Room to join, the id selects the theme (default: friendship)
  --name NAME     Display name
  --server URL    Authority server websocket URL (default: ws://localhost:4000/ws)
  --offline       Skip the server entirely and run a simulated session

Environment Variables:
  VIBEPARTY_SERVER_URL  Server websocket URL
  VIBEPARTY_ROOM        Room id to join
  VIBEPARTY_NAME        Display name
  VIBEPARTY_AVATAR      Avatar glyph
  VIBEPARTY_SCOPE       Persistence scope for resume-on-restart
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("vibeparty-client %s\n", version)
		return
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	if *roomFlag != "" {
		cfg.RoomID = *roomFlag
	}
	if *nameFlag != "" {
		cfg.UserName = *nameFlag
	}
	if *serverFlag != "" {
		cfg.ServerURL = *serverFlag
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	logger := zerologlog.Logger

	self := session.Participant{
		ID:     uuid.NewString(),
		Name:   cfg.UserName,
		Avatar: cfg.UserAvatar,
		Online: true,
	}

	var ctrl *session.Controller
	if *offline {
		ctrl = session.New(nil, store.NewFile(cfg.StorageScope), self, logger)
	} else {
		ch := transport.New(cfg.ServerURL, func(event string, data []byte) {
			ctrl.HandleEvent(event, data)
		}, logger)
		ctrl = session.New(ch, store.NewFile(cfg.StorageScope), self, logger)
		ch.Connect()
		// give the dial a moment before deciding between online start
		// and the offline fallback
		time.Sleep(500 * time.Millisecond)
	}
	defer ctrl.Close()

	ctrl.EnterRoom(cfg.RoomID)
	if !ctrl.Started() && ctrl.Round() == session.RoundQuestions {
		ctrl.StartGame()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			logger.Info().Msg("shutting down")
			return
		case <-ctrl.Updates():
			snap := ctrl.Snapshot()
			logger.Info().
				Str("round", snap.GameState).
				Int("timeLeft", snap.TimeLeft).
				Int("participants", len(snap.Users)).
				Msg("session update")
			if ctrl.Finished() {
				logger.Info().Int("matches", len(snap.Matches)).Msg("game finished")
				return
			}
		}
	}
}
