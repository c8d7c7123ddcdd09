package main

import (
	"github.com/matt-steen/task-dashboard/pkg/controller"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Run the terminal dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// the terminal belongs to the dashboard; without a log file, logs are dropped
			if a.cfg.LogFile == "" {
				log.Logger = zerolog.Nop()
			}

			loc, err := a.cfg.Client.Location()
			if err != nil {
				return err
			}

			sess, err := a.newClientSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			ctrl := controller.NewController(ctx, sess.store, sess.holder, loc)

			if creds, err := a.credentials(cmd); err == nil {
				if err := ctrl.SignIn(creds); err != nil {
					log.Warn().Err(err).Msg("configured credentials rejected; showing sign in")
				}
			}

			return ctrl.Run()
		},
	}

	addCredentialFlags(cmd)

	return cmd
}
