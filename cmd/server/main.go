package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/internal/config"
	"github.com/andrewchart/final-rendezvous-game/internal/httpapi"
	"github.com/andrewchart/final-rendezvous-game/internal/relay"
	"github.com/andrewchart/final-rendezvous-game/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	var st store.Store
	if cfg.MongoURL != "" {
		m, err := store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			log.Fatal("connecting to mongodb", zap.Error(err))
		}
		defer m.Close(ctx)
		st = m
	} else {
		log.Warn("MONGO_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	rl := relay.New(ctx, log)

	// Default deployment runs API and relay in one process, but the
	// notification protocol is transport-agnostic: point RELAY_URL at a
	// standalone relay to split them.
	var notifier httpapi.Notifier = rl
	if cfg.RelayURL != "" {
		notifier = relay.NewAPIClient(cfg.RelayURL, log)
	}

	api := httpapi.New(st, notifier, log)
	handler := api.Routes(relay.Handler(rl, log))

	log.Info("listening", zap.String("addr", cfg.APIAddr))
	if err := http.ListenAndServe(cfg.APIAddr, handler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
