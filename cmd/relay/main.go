package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/internal/config"
	"github.com/andrewchart/final-rendezvous-game/internal/relay"
)

// Standalone relay process for deployments that keep the WebSocket fan-out on
// its own host. The API reaches it via RELAY_URL.
func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	rl := relay.New(context.Background(), log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", relay.Handler(rl, log))

	log.Info("relay listening", zap.String("addr", cfg.RelayAddr))
	if err := http.ListenAndServe(cfg.RelayAddr, mux); err != nil {
		log.Fatal("relay stopped", zap.Error(err))
	}
}
