// Package cli implements the ragctl operator commands.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"ragdesk/internal/bootstrap"
)

// openApp builds the application for a command. Tests replace it.
var openApp = func(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.New(ctx, bootstrap.Options{})
}

// app is set by the root pre-run for commands that need services.
var app *bootstrap.App

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "Operate a ragdesk deployment",
	Long:          `Manage users, collections and maintenance mode against the configured ragdesk stores.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || app != nil {
			return nil
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		app = a
		return nil
	},
}

// Execute runs the command tree and releases the application afterwards.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		if closeErr := app.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		app = nil
	}
	return err
}

var errNoApp = errors.New("application not initialised")

func services() (bootstrap.Services, error) {
	if app == nil {
		return bootstrap.Services{}, errNoApp
	}
	return app.Services, nil
}
