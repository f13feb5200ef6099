package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ritzau/circulation/pkg/config"
	"github.com/ritzau/circulation/pkg/logging"
	"github.com/ritzau/circulation/pkg/model"
	"github.com/ritzau/circulation/pkg/output"
	"github.com/ritzau/circulation/pkg/pathfind"
	"github.com/ritzau/circulation/pkg/pubsub"
	"github.com/ritzau/circulation/pkg/session"
	"github.com/ritzau/circulation/pkg/store"
	"github.com/ritzau/circulation/pkg/watcher"
	"github.com/ritzau/circulation/pkg/web"
	"github.com/spf13/cobra"
)

func (a *app) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the graph of the selected model and report its topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireModel(); err != nil {
				return err
			}
			sess, err := a.newSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			g, err := sess.Build(cmd.Context(), a.cfg.Model, a.cfg.Label)
			output.PrintDiagnostics(cmd.ErrOrStderr(), sess.Diagnostics().Drain())
			if err != nil {
				return err
			}
			output.PrintSummary(a.out, model.Summarize(g))
			return nil
		},
	}
}

func (a *app) routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route FROM TO",
		Short: "Print the shortest route between two spaces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.search(cmd, args[0], args[1], 1)
		},
	}
}

func (a *app) routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes FROM TO",
		Short: "Print up to k ranked alternative routes between two spaces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.search(cmd, args[0], args[1], a.cfg.K)
		},
	}
}

// search builds the selected model and prints the routes from..to
func (a *app) search(cmd *cobra.Command, from, to string, k int) error {
	if err := a.requireModel(); err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, err := a.newSession(ctx, nil)
	if err != nil {
		return err
	}
	defer sess.Close()
	defer func() {
		output.PrintDiagnostics(cmd.ErrOrStderr(), sess.Diagnostics().Drain())
	}()

	if _, err := sess.Build(ctx, a.cfg.Model, a.cfg.Label); err != nil {
		return err
	}

	var out pathfind.Outcome
	if k == 1 {
		out, err = sess.Route(ctx, from, to)
	} else {
		out, err = sess.Routes(ctx, from, to, k)
	}
	if err != nil {
		return fmt.Errorf("route search: %w", err)
	}
	output.PrintRoutes(a.out, from, to, out)
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the route API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			publisher := pubsub.NewSSEPublisher()
			defer publisher.Close()

			sess, err := a.newSession(ctx, publisher)
			if err != nil {
				return err
			}
			defer sess.Close()

			server := web.NewServer(sess, publisher, a.cfg.K, a.cfg.MaxK)

			if a.cfg.Model != "" {
				// A failed initial build leaves the server up; POST /api/models/{model}/build retries
				if _, err := sess.Build(ctx, a.cfg.Model, a.cfg.Label); err != nil {
					logging.Error("initial build failed", "model", a.cfg.Model, "error", err)
				}
			}

			if a.cfg.Watch {
				a.startWatch(ctx, sess)
			}

			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(a.cfg.Port)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				logging.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}
}

// startWatch rebuilds the session when the file store changes underneath it
func (a *app) startWatch(ctx context.Context, sess *session.Session) {
	if a.cfg.Source != config.SourceFile {
		logging.Warn("watch is only supported for the file source", "source", a.cfg.Source)
		return
	}
	fs := store.NewFileStore(a.cfg.Data)
	go func() {
		err := watcher.Reload(ctx, fs, sess, watcher.DefaultQuietPeriod, watcher.DefaultMaxWait)
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("model watcher stopped", "error", err)
		}
	}()
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import MODEL FILE",
		Short: "Copy a TOML model file into the configured source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			modelID, path := args[0], args[1]
			if a.cfg.Source == config.SourceMemory {
				return errors.New("memory source does not persist imports; use file or badger")
			}

			if filepath.Ext(path) != store.FileExt {
				return fmt.Errorf("%s: expected a %s file", path, store.FileExt)
			}
			src := store.NewFileStore(filepath.Dir(path))
			records, err := src.Records(ctx, strings.TrimSuffix(filepath.Base(path), store.FileExt))
			if err != nil {
				return err
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			w, ok := st.(store.Writer)
			if !ok {
				return fmt.Errorf("%s source is read-only", a.cfg.Source)
			}
			if err := w.Put(ctx, modelID, records); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %d records into %s (%s)\n", len(records), modelID, st.Name())
			return nil
		},
	}
}

func (a *app) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available in the configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			l, ok := st.(store.Lister)
			if !ok {
				return fmt.Errorf("%s source cannot list models", a.cfg.Source)
			}
			ids, err := l.Models(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	}
}
