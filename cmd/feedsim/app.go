package main

import (
	"context"
	"fmt"
	"time"

	"feedsim/internal/achievement"
	"feedsim/internal/config"
	"feedsim/internal/credential"
	"feedsim/internal/feed"
	"feedsim/internal/generate"
	"feedsim/internal/jobs"
	"feedsim/internal/logging"
	"feedsim/internal/quota"
	"feedsim/internal/search"
	"feedsim/internal/store/sqlitekv"
)

// app wires the stores and services for one process.
type app struct {
	cfg    config.Config
	db     *sqlitekv.DB
	feed   *feed.Store
	ach    *achievement.Store
	search *search.Store
	creds  *credential.Service
	gen    *generate.Client
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !debug {
		logging.Setup(cfg.Logging.Level, true)
	}

	db, err := sqlitekv.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}
	a.creds = credential.New(db, credential.Options{
		Passphrase: cfg.Credentials.Passphrase,
		DefaultKey: cfg.Credentials.DefaultAPIKey,
	})
	backend := generate.NewGeminiBackend(cfg.Generation.BaseURL, a.creds,
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second,
		generate.WithRateLimit(cfg.Generation.RequestsPerSecond, cfg.Generation.Burst))
	a.creds.SetValidator(backend)
	a.gen = generate.New(backend, generate.Options{
		Chain:    cfg.Generation.Chain,
		Delay:    cfg.Generation.FallbackDelay,
		Language: cfg.Generation.Language,
		Weights:  cfg.Reactions,
		Budget:   quota.NewTracker(db),
	})
	a.feed = feed.New(db)
	a.ach = achievement.New(db, 0)
	a.search = search.New()

	a.feed.Hydrate(ctx)
	a.ach.Hydrate(ctx)
	return a, nil
}

func (a *app) deps() jobs.Deps {
	return jobs.Deps{Store: a.feed, Gen: a.gen, Feed: a.cfg.Feed}
}

// close drains pending writes before closing the database.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.feed.Close(ctx); err != nil {
		logging.Error("feed_close_failed", map[string]any{"error": err.Error()})
	}
	if err := a.ach.Close(ctx); err != nil {
		logging.Error("achievement_close_failed", map[string]any{"error": err.Error()})
	}
	_ = a.db.Close()
}

// withApp opens the app for the duration of f.
func withApp(ctx context.Context, f func(*app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return f(a)
}
