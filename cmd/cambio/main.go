package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cambio-games/server/internal/config"
	"github.com/cambio-games/server/internal/game"
	"github.com/cambio-games/server/internal/history"
	"github.com/cambio-games/server/internal/manager"
	"github.com/cambio-games/server/internal/server"
	"github.com/cambio-games/server/internal/store"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var recorder game.ActionRecorder
	if cfg.RedisAddr != "" {
		rec := history.New(cfg.RedisAddr)
		if err := rec.Ping(ctx); err != nil {
			log.WithError(err).Fatal("redis unreachable")
		}
		defer rec.Close()
		recorder = rec
		log.WithField("addr", cfg.RedisAddr).Info("action history enabled")
	}

	var results game.ResultStore
	if cfg.DatabaseURL != "" {
		st, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("database unreachable")
		}
		defer st.Close()
		results = st
		log.Info("result persistence enabled")
	}

	mgr := manager.New(log, recorder, results)
	defer mgr.Close()

	sessions := server.NewSessions(cfg.SessionSecret)
	srv := server.New(log, mgr, sessions, cfg.AllowedOrigins)

	log.WithField("port", cfg.Port).Info("listening")
	if err := http.ListenAndServe(":"+cfg.Port, srv.Handler()); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
