package main

import (
	"context"
	"fmt"
	"net"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/matt-steen/task-dashboard/pkg/auth"
	"github.com/matt-steen/task-dashboard/pkg/db"
	"github.com/matt-steen/task-dashboard/pkg/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const purgeInterval = time.Hour

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the task API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg.Server
	if err := cfg.Validate(); err != nil {
		return err
	}

	database, err := db.NewDatabase(ctx, cfg.DBFile)
	if err != nil {
		return err
	}

	identity := auth.NewService(database, auth.Config{
		Token: auth.TokenConfig{
			SecretKey: cfg.JWTSecret,
			TTL:       cfg.TokenTTL,
			Issuer:    cfg.JWTIssuer,
		},
		BcryptCost:  cfg.BcryptCost,
		AutoConfirm: cfg.AutoConfirm,
	})

	api := server.New(database, identity)

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		database.Close()

		return fmt.Errorf("error listening on %s: %w", cfg.Address, err)
	}

	go func() {
		log.Info().Str("address", ln.Addr().String()).Msg("starting task API")

		if err := api.Listener(ln); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	purgeCtx, stopPurge := context.WithCancel(ctx)
	go purgeRevokedTokens(purgeCtx, database)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Info().Msg("graceful shutdown initiated...")
				stopPurge()

				if err := api.ShutdownWithContext(ctx); err != nil {
					return err
				}

				return database.Close()
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("exitCode", exitCode).Msg("task API stopped")

	if exitCode != 0 {
		return errShutdown
	}

	return nil
}

// purgeRevokedTokens drops revocations of tokens that have expired anyway.
func purgeRevokedTokens(ctx context.Context, database *db.Database) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := database.PurgeExpiredTokens(ctx, now)
			if err != nil {
				log.Warn().Err(err).Msg("error purging revoked tokens")

				continue
			}

			log.Debug().Int64("purged", n).Msg("purged expired token revocations")
		}
	}
}
