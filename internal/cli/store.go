package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	redisstore "live-quiz-service/internal/infra/redis"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStoreCmd groups maintenance commands for the shared store.
func NewStoreCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect or reset the shared games store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Write and read back a probe value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *configPath, func(ctx context.Context, cfg config.Config, store app.ConditionalStore) error {
				if p, ok := store.(pinger); ok {
					if err := p.Ping(ctx); err != nil {
						return err
					}
				}
				if err := app.CheckConnection(ctx, store); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Replace the games collection with an empty one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *configPath, func(ctx context.Context, cfg config.Config, store app.ConditionalStore) error {
				repo := newRepository(cfg, store)
				if err := repo.Clear(ctx); err != nil {
					return err
				}
				log.Printf("cleared %q", repo.Key())
				return nil
			})
		},
	})
	return cmd
}

type pinger interface {
	Ping(ctx context.Context) error
}

func withStore(ctx context.Context, configPath string, fn func(context.Context, config.Config, app.ConditionalStore) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, closeStore := openStore(cfg)
	defer closeStore()
	return fn(ctx, cfg, store)
}

// openStore returns the Redis store when redis.addr is set and an in-process
// store otherwise.
func openStore(cfg config.Config) (app.ConditionalStore, func()) {
	if cfg.Redis.Addr == "" {
		log.Printf("redis.addr not set, using in-memory store")
		return memory.NewSharedStore(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	timeout := config.ParseDuration(cfg.Redis.Timeout, 3*time.Second)
	return redisstore.NewSharedStore(client, timeout), func() {
		if err := client.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
}

func newRepository(cfg config.Config, store app.ConditionalStore) *app.Repository {
	if app.SyncMode(cfg.SyncMode()) == app.SyncOptimistic {
		return app.NewOptimisticRepository(store, cfg.Store.Key, cfg.MaxAttempts())
	}
	return app.NewRepository(store, cfg.Store.Key)
}
