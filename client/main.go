package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/onoro/game"
	"github.com/wfunc/onoro/protocol"
	"github.com/wfunc/onoro/retry"
	"github.com/wfunc/onoro/socket"
)

func main() {
	url := flag.String("url", "ws://localhost:2345/onoro", "websocket endpoint")
	reconnect := flag.Bool("reconnect", true, "redial with backoff when the connection drops")
	verbose := flag.Bool("v", false, "per-frame debug logging")
	flag.Parse()

	zl, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := zl.Sugar()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sock, err := socket.Dial(ctx, socket.DialConfig{
		URL:       *url,
		Reconnect: *reconnect,
		Retry:     retry.Persistent(),
	}, protocol.ClientCapabilities(), socket.Options{
		Logger:  logger,
		Verbose: *verbose,
	})
	if err != nil {
		logger.Fatalf("Dial failed: %v", err)
	}
	defer sock.Close()

	err = sock.On(protocol.EventServerStats, func(args []any) {
		stats, err := protocol.DecodeServerStats(args)
		if err != nil {
			logger.Warnf("Bad server_stats payload: %v", err)
			return
		}
		logger.Infof("Server stats: %d connections, %d games served, up %ds",
			stats.Connections, stats.GamesServed, stats.UptimeSeconds)
	})
	if err != nil {
		logger.Fatalf("Failed to register stats handler: %v", err)
	}

	st, err := sock.Call(ctx, protocol.EventNewGame)
	if err != nil {
		logger.Fatalf("new_game call failed: %v", err)
	}
	if !st.IsOk() {
		logger.Fatalf("new_game rejected: %s", st)
	}

	state, err := decodeState(st.Value())
	if err != nil {
		logger.Fatalf("Bad game state payload: %v", err)
	}

	fmt.Printf("New game: turn %d, %d pawns placed, %s to move\n",
		state.TurnNum, len(state.Pawns), toMove(state))
	for _, p := range state.Pawns {
		fmt.Printf("  %s pawn at (%d, %d)\n", p.Color, p.X, p.Y)
	}

	logger.Info("Listening for server notifications, Ctrl-C to exit.")
	<-interrupt
	logger.Info("Interrupt received, closing connection.")
}

// decodeState unpacks the opaque game payload: JSON carries the bytes
// as a base64 string.
func decodeState(v any) (game.State, error) {
	text, ok := v.(string)
	if !ok {
		return game.State{}, fmt.Errorf("expected base64 payload, got %T", v)
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return game.State{}, err
	}
	return game.Unmarshal(raw)
}

func toMove(s game.State) game.Color {
	if s.BlackTurn {
		return game.Black
	}
	return game.White
}
