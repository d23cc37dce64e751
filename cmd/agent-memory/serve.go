package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/runtime"
	"github.com/agent-memory/agent-memory/internal/tool"
	"github.com/agent-memory/agent-memory/internal/transport/jsonrpc"
	"github.com/agent-memory/agent-memory/internal/transport/rest"
)

// serveCommand runs the tool protocol over stdin/stdout by default, or
// over HTTP when --rest is set, per spec.md §6.3. Shutdown is
// signal-driven, grounded on the teacher's cmd/server/main.go
// (os/signal.Notify on SIGINT/SIGTERM, bounded graceful drain).
func (cli *CLI) serveCommand() *cobra.Command {
	var restMode bool
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cli.configPath)
			if err != nil {
				return usageError(fmt.Errorf("load config: %w", err))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := runtime.Global().Bootstrap(ctx, cfg)
			if err != nil {
				return failureError(fmt.Errorf("bootstrap runtime: %w", err))
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
				defer cancel()
				_ = rt.Shutdown(shutdownCtx)
			}()

			ac, err := runtime.NewAppContext(ctx, rt)
			if err != nil {
				return failureError(fmt.Errorf("build app context: %w", err))
			}

			reg := tool.NewRegistry()
			tool.RegisterAll(reg)
			dispatcher := tool.NewDispatcher(reg, ac)

			if restMode {
				listenAddr := addr
				if listenAddr == "" {
					listenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
				}
				return runRESTUntilDone(ctx, dispatcher, rt, listenAddr, cfg.Server.GracefulShutdownTimeout)
			}

			if err := jsonrpc.NewServer(dispatcher, rt.Logger, int(cfg.Server.StdinMaxBytes)).Serve(ctx, os.Stdin, os.Stdout); err != nil {
				return failureError(fmt.Errorf("serve stdio: %w", err))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&restMode, "rest", false, "serve the tool protocol over HTTP instead of stdin/stdout")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address override (default host:port from config)")

	return cmd
}

func runRESTUntilDone(ctx context.Context, d *tool.Dispatcher, rt *runtime.Runtime, addr string, shutdownTimeout time.Duration) error {
	srv := rest.NewServer(addr, d, rt)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return failureError(fmt.Errorf("shut down rest server: %w", err))
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return failureError(fmt.Errorf("rest server: %w", err))
		}
		return nil
	}
}
