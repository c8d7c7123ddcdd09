package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/matt-steen/task-dashboard/pkg/client"
	"github.com/matt-steen/task-dashboard/pkg/session"
	"github.com/matt-steen/task-dashboard/pkg/store"
	"github.com/spf13/cobra"
)

var (
	errShutdown    = errors.New("server did not shut down cleanly")
	errCredentials = errors.New("email and password are required (flags, client.email/client.password or TASKDASH_EMAIL/TASKDASH_PASSWORD)")
)

// clientSession bundles the client-side components wired together.
type clientSession struct {
	holder *session.Holder
	store  *store.Store
}

func (a *app) newClientSession(ctx context.Context) (*clientSession, error) {
	loc, err := a.cfg.Client.Location()
	if err != nil {
		return nil, err
	}

	api := client.New(a.cfg.Client.BaseURL, a.cfg.Client.Timeout)

	holder := session.NewHolder(client.NewIdentity(api))
	holder.Initialize(ctx)

	st := store.New(client.NewTasks(api, holder), holder, store.WithLocation(loc))
	st.Start(ctx)

	return &clientSession{holder: holder, store: st}, nil
}

func (s *clientSession) close(ctx context.Context) {
	s.store.Close()

	if s.holder.Current().IsAuthenticated() {
		s.holder.Logout(ctx) //nolint:errcheck
	}
}

// signInAndLoad logs in and loads the collection. A failed load is returned
// rather than reported as an empty collection.
func (s *clientSession) signInAndLoad(ctx context.Context, creds session.Credentials) (store.Snapshot, error) {
	if err := s.holder.Login(ctx, creds); err != nil {
		return store.Snapshot{}, err
	}

	if err := s.store.Refresh(ctx); err != nil {
		return store.Snapshot{}, err
	}

	return s.store.Snapshot(), nil
}

// credentials reads --email and --password, defaulting to the client config.
func (a *app) credentials(cmd *cobra.Command) (session.Credentials, error) {
	creds := session.Credentials{Email: a.cfg.Client.Email, Password: a.cfg.Client.Password}

	if email, _ := cmd.Flags().GetString("email"); email != "" {
		creds.Email = email
	}

	if password, _ := cmd.Flags().GetString("password"); password != "" {
		creds.Password = password
	}

	if creds.Email == "" || creds.Password == "" {
		return creds, errCredentials
	}

	return creds, nil
}

// addCredentialFlags adds --email and --password.
func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("email", "e", "", "account email")
	cmd.Flags().StringP("password", "p", "", "account password")
}

func (a *app) signUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account; the server logs the confirmation code unless auto-confirm is on",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.credentials(cmd)
			if err != nil {
				return err
			}

			holder := session.NewHolder(client.NewIdentity(client.New(a.cfg.Client.BaseURL, a.cfg.Client.Timeout)))

			if err := holder.SignUp(cmd.Context(), creds); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "signed up %s\n", creds.Email)

			return nil
		},
	}

	addCredentialFlags(cmd)

	return cmd
}

func (a *app) confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm [code]",
		Short: "Confirm an account with its confirmation code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				email = a.cfg.Client.Email
			}

			if email == "" {
				return errCredentials
			}

			holder := session.NewHolder(client.NewIdentity(client.New(a.cfg.Client.BaseURL, a.cfg.Client.Timeout)))

			if err := holder.ConfirmSignUp(cmd.Context(), email, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "confirmed %s\n", email)

			return nil
		},
	}

	cmd.Flags().StringP("email", "e", "", "account email")

	return cmd
}
