// Package ratectl is the command line front end: it logs a user in against a
// branch and runs the propagation engine locally against the branch API.
package ratectl

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"branchrate/internal/branch/client"
	"branchrate/internal/branch/directory"
	"branchrate/internal/propagation"
)

// App holds what every command needs. Tests swap the streams and home.
type App struct {
	Home string
	In   io.Reader
	Out  io.Writer
	Err  io.Writer

	verbose bool
	cfg     Config
}

// NewRootCmd builds the command tree.
func NewRootCmd(app *App) *cobra.Command {
	if app.Home == "" {
		app.Home = DefaultHome()
	}
	root := &cobra.Command{
		Use:   "ratectl",
		Short: "ratectl - preview and apply branch rates",
		Long: `ratectl manages interest rates across a branch hierarchy.

A rate set on a branch cascades to all of its descendants. Every change is
previewed first and only written after confirmation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(app.Home)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			app.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&app.Home, "home", app.Home, "Directory holding config.yaml and session.yaml")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Enable verbose output")
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	root.AddCommand(newLoginCmd(app))
	root.AddCommand(newLogoutCmd(app))
	root.AddCommand(newWhoamiCmd(app))
	root.AddCommand(newBranchesCmd(app))
	root.AddCommand(newRateCmd(app))
	return root
}

// Execute runs the root command with the process streams.
func Execute(version string, in io.Reader, out, errOut io.Writer) error {
	root := NewRootCmd(&App{In: in, Out: out, Err: errOut})
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return err
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if !a.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(a.Err, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (a *App) client() *client.Client {
	opts := []client.Option{
		client.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout}),
		client.WithLogger(a.logger()),
	}
	if a.cfg.APIToken != "" {
		opts = append(opts, client.WithAuthToken(a.cfg.APIToken))
	}
	return client.New(a.cfg.APIURL, opts...)
}

// loadDirectory fetches the branch forest once.
func (a *App) loadDirectory(cmd *cobra.Command, c *client.Client) (*directory.Directory, error) {
	dir := directory.New(c, directory.WithLogger(a.logger()))
	if err := dir.Refresh(cmd.Context()); err != nil {
		return nil, err
	}
	return dir, nil
}

func (a *App) engine(dir *directory.Directory, c *client.Client) (*propagation.Engine, error) {
	return propagation.New(dir, c,
		propagation.WithLogger(a.logger()),
		propagation.WithWriteTimeout(a.cfg.WriteTimeout),
	)
}
