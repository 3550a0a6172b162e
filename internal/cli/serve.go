package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"stackit/internal/bootstrap"
	"stackit/internal/middleware"
	"stackit/internal/server"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var loadTags bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, loadTags)
		},
	}
	cmd.Flags().BoolVar(&loadTags, "load-tags", false, "upsert the tag catalog before serving")

	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, loadTags bool) error {
	cfg := opts.Config
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{LoadTagCatalog: loadTags})
	if err != nil {
		return err
	}

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis, nil)
	if err != nil {
		return errors.Join(err, rt.Close(ctx))
	}

	// Build the app before Start runs concurrently with Shutdown.
	srv.App()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		middleware.Logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, srv.Shutdown(shutdownCtx), rt.Flush(shutdownCtx))
}
