package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/cache"
	"github.com/stratdeck/stratdeck/internal/config"
	httpiface "github.com/stratdeck/stratdeck/internal/interfaces/http"
	"github.com/stratdeck/stratdeck/internal/metrics"
	"github.com/stratdeck/stratdeck/internal/service"
	"github.com/stratdeck/stratdeck/internal/store"
	"github.com/stratdeck/stratdeck/internal/store/postgres"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	reg, err := archetype.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	log.Info().Int("archetypes", reg.Len()).Str("path", cfg.Catalog.Path).Msg("catalog loaded")

	var st store.Store
	if cfg.Database.Enabled {
		db, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		st = store.NewBreaker(postgres.NewStore(db), log.Logger)
		log.Info().Msg("using postgres store")
	} else {
		st = store.NewMemory()
		log.Warn().Msg("using in-memory store; data will not survive restarts")
	}

	var cc *cache.CompileCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cc = cache.New(rdb, cfg.Redis.TTL.Duration(), log.Logger)
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL.Duration()).Msg("compile cache enabled")
	}

	m := metrics.New()
	svc := service.New(reg, st, cc, m, log.Logger)
	srv := httpiface.NewServer(svc, m, log.Logger, cfg.Server)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		return srv.Shutdown(context.Background())
	}
}
