package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/benchrig/benchrig"
	httpadapter "github.com/benchrig/benchrig/pkg/adapters/http"
	"github.com/benchrig/benchrig/pkg/adapters/mcp"
	redisadapter "github.com/benchrig/benchrig/pkg/adapters/redis"
	"github.com/benchrig/benchrig/pkg/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an empty state tree through the relay",
	Long: `Starts the HTTP relay on a fresh state tree so operator UIs can be developed
without a station. Optionally exposes the same tree over MCP (SSE transport)
and mirrors every mutation to a Redis channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")
		mcpPort, _ := cmd.Flags().GetInt("mcp-port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		room, _ := cmd.Flags().GetString("room")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tree := state.New()
		if redisAddr != "" {
			client := backend.NewClient(&backend.Options{Addr: redisAddr})
			defer client.Close()
			detach := redisadapter.NewPublisher(client, room, redisadapter.WithLogger(logger)).Attach(tree)
			defer detach()
		}

		relay := httpadapter.NewServer(tree, httpadapter.WithLogger(logger))
		defer relay.Close()
		srv := &http.Server{Addr: ":" + port, Handler: relay.Handler()}

		serverErrors := make(chan error, 2)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()
		if mcpPort > 0 {
			go func() {
				serverErrors <- mcp.NewServer(tree, benchrig.Version, mcp.WithLogger(logger)).ServeSSE(ctx, mcpPort)
			}()
		}

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Relay stopped")
			return nil
		}
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose an empty state tree to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		// Stdout carries JSON-RPC, so logs stay on stderr.
		return mcp.NewServer(state.New(), benchrig.Version, mcp.WithLogger(logger)).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, mcpCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Int("mcp-port", 0, "Also serve MCP over SSE on this port")
	serveCmd.Flags().String("redis", "", "Mirror mutations to this Redis address")
	serveCmd.Flags().String("room", "benchrig", "Redis channel name")
}
