// Command circulation builds circulation graphs of building models and
// answers shortest-route and ranked-alternative queries between spaces.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ritzau/circulation/pkg/config"
	"github.com/ritzau/circulation/pkg/logging"
	"github.com/ritzau/circulation/pkg/pathfind"
	"github.com/ritzau/circulation/pkg/pubsub"
	"github.com/ritzau/circulation/pkg/session"
	"github.com/ritzau/circulation/pkg/store"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand after flags are parsed
type app struct {
	cfg *config.Config
	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "circulation",
		Short:         "Shortest and alternative routes through building circulation graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadFile(path, cmd.Flags())
			if err != nil {
				return err
			}

			level, err := logging.ParseLevel(cfg.Verbosity)
			if err != nil {
				return err
			}
			logging.Configure(level, cfg.LogFormat)

			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			return nil
		},
	}

	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().String("config", config.FileName, "Config file (TOML); missing files are ignored")

	root.AddCommand(
		a.buildCmd(),
		a.routeCmd(),
		a.routesCmd(),
		a.serveCmd(),
		a.importCmd(),
		a.modelsCmd(),
	)
	return root
}

// openStore opens the configured connectivity source
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s source: %w", a.cfg.Source, err)
	}
	return st, nil
}

// newSession opens the store and wraps it in a session configured from a.cfg
func (a *app) newSession(ctx context.Context, publisher pubsub.Publisher) (*session.Session, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithSolverOptions(
			pathfind.WithTimeout(a.cfg.Timeout),
			pathfind.WithParallelSpurs(a.cfg.Parallel),
		),
	}
	if publisher != nil {
		opts = append(opts, session.WithPublisher(publisher))
	}
	return session.New(st, opts...), nil
}

func (a *app) requireModel() error {
	if a.cfg.Model == "" {
		return fmt.Errorf("no model selected: use --model or set model in %s", config.FileName)
	}
	return nil
}
