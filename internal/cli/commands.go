// Package cli implements the fastid command-line interface: running the
// server, applying migrations and creating users.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/server"
	"github.com/fastid/fastid/internal/server/config"
	"github.com/fastid/fastid/internal/server/models"
)

// UserCreator is the part of the user service the CLI needs.
type UserCreator interface {
	Create(ctx context.Context, email, password string, isAdmin bool) (*models.User, error)
}

type rootOptions struct {
	configFile string
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var args []string
	if o.configFile != "" {
		args = []string{"-c", o.configFile}
	}
	return config.Load(args)
}

func (o *rootOptions) newApp(ctx context.Context) (*server.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return server.NewApp(ctx, cfg)
}

// NewRootCommand builds the fastid command tree reading prompts from in and
// writing to out.
func NewRootCommand(version string, in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "fastid",
		Short:         "fastid authentication service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a JSON or YAML config file")

	root.AddCommand(newServeCommand(opts), newMigrateCommand(opts), newUserCommand(opts))
	return root
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close(cmd.Context())
			return app.Run(cmd.Context())
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close(cmd.Context())

			if err := app.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

type userCreateOptions struct {
	email     string
	password  string
	admin     bool
	adminSet  bool
	assumeYes bool
}

func newUserCommand(opts *rootOptions) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var co userCreateOptions
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close(cmd.Context())

			if err := app.Migrate(cmd.Context()); err != nil {
				return err
			}

			co.adminSet = cmd.Flags().Changed("admin")
			return runUserCreate(cmd.Context(), app.Users(), co, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	createCmd.Flags().StringVar(&co.email, "email", "", "email address")
	createCmd.Flags().StringVar(&co.password, "password", "", "password (prompted when omitted)")
	createCmd.Flags().BoolVar(&co.admin, "admin", false, "grant administrator access")
	createCmd.Flags().BoolVar(&co.assumeYes, "yes", false, "do not ask for confirmation")

	userCmd.AddCommand(createCmd)
	return userCmd
}

// runUserCreate prompts for whatever the flags left out and creates the user.
// An existing email is reported, not returned as an error.
func runUserCreate(ctx context.Context, users UserCreator, o userCreateOptions, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	var err error
	if o.email == "" {
		if o.email, err = GetSimpleText(reader, "Enter the email address", out); err != nil {
			return err
		}
	}
	if o.password == "" {
		if o.password, err = GetNewPassword(out); err != nil {
			return err
		}
	}
	if !o.adminSet && !o.assumeYes {
		if o.admin, err = Confirm(reader, "Create the user with administrator access?", out); err != nil {
			return err
		}
	}
	if !o.assumeYes {
		ok, err := Confirm(reader, "Are you sure you want to create user?", out)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted!")
			return nil
		}
	}

	if _, err := users.Create(ctx, o.email, o.password, o.admin); err != nil {
		if errors.Is(err, common.ErrConflict) {
			fmt.Fprintln(out, "The user already exists!")
			return nil
		}
		return err
	}

	fmt.Fprintln(out, "User successfully created!")
	return nil
}
