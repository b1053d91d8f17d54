package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/mcp"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/middleware"
)

const shutdownTimeout = 15 * time.Second

var serveAddr string

// serveCmd runs the HTTP API, the MCP endpoint and /metrics.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and MCP endpoint",
	Long: `Starts the HTTP server. Routes:

  POST   /api/query            ask a question
  GET    /api/memory           recent questions and their SQL
  DELETE /api/memory           clear the query memory
  GET    /api/tools            list tools
  POST   /api/tools/{name}     invoke a tool
  GET    /api/schema           schema snapshot used for prompting
  POST   /api/schema/refresh   rediscover the schema
  POST   /mcp                  MCP streamable HTTP transport
  GET    /health, /ping, /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return serve(ctx, a)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to bind_addr:port from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter assembles every route behind the shared middleware chain.
func newRouter(a *app) http.Handler {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, a.tester, a.logger).RegisterRoutes(mux)
	handlers.NewAgentHandler(a.agent, a.schema, a.logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer("ekaya-sqlagent", a.cfg.Version, a.logger)
	mcp.RegisterHealthTool(mcpServer.MCP(), a.cfg.Version)
	mcp.RegisterAgentTools(mcpServer.MCP(), a.agent)
	handlers.NewMCPHandler(mcpServer, a.logger.Named("mcp-http")).RegisterRoutes(mux)

	mux.Handle("GET /metrics", metrics.Handler())

	var h http.Handler = mux
	h = metrics.Middleware(h)
	h = middleware.RequestLogger(a.logger.Named("http"))(h)
	h = middleware.ClientIP(h)
	h = middleware.RequestID(h)
	return h
}

func serve(ctx context.Context, a *app) error {
	addr := serveAddr
	if addr == "" {
		addr = net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting ekaya-sqlagent",
			zap.String("addr", addr),
			zap.String("base_url", a.cfg.BaseURL),
			zap.String("version", a.cfg.Version),
			zap.String("env", a.cfg.Env),
		)
		var err error
		if a.cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(a.cfg.TLSCertPath, a.cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
