package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/talentlayer/talentlayer-go/extensions/idempotency"
	"github.com/talentlayer/talentlayer-go/extensions/metrics"
	"github.com/talentlayer/talentlayer-go/extensions/natsevents"
	"github.com/talentlayer/talentlayer-go/mcp"
	gintl "github.com/talentlayer/talentlayer-go/pkg/gin"
)

const shutdownTimeout = 15 * time.Second

var version = "dev"

func (a *app) serveCmd() *cobra.Command {
	var (
		listen   string
		dedupTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the escrow API over HTTP, with MCP tools at /mcp and metrics at /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			handler, cleanup, err := a.buildServer(ctx, dedupTTL)
			if err != nil {
				return err
			}
			defer cleanup()

			if listen == "" {
				listen = a.cfg.HTTP.Listen
			}
			srv := &http.Server{
				Addr:         listen,
				Handler:      handler,
				ReadTimeout:  a.cfg.HTTP.ReadTimeout,
				WriteTimeout: a.cfg.HTTP.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("listen", listen).Info("serving escrow api")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :8080)")
	cmd.Flags().DurationVar(&dedupTTL, "dedup-ttl", idempotency.DefaultTTL, "how long writes sent with an idempotency key replay their first result")
	return cmd
}

// buildServer wires the client, extensions and routes. The ledger is optional:
// without TALENTLAYER_PRIVATE_KEY the write routes answer missing_ledger.
func (a *app) buildServer(ctx context.Context, dedupTTL time.Duration) (http.Handler, func(), error) {
	client, err := a.newClient(ctx, optionalLedger)
	if err != nil {
		return nil, nil, err
	}
	if !client.HasLedger() {
		a.log.Warn(privateKeyEnv + " is not set; write operations are disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.NewCollector(reg).Attach(client)

	cleanup := func() {}
	if a.cfg.NATS.URL != "" {
		conn, err := natsevents.Connect(a.cfg.NATS.URL, a.log)
		if err != nil {
			return nil, nil, err
		}
		natsevents.NewPublisher(conn, a.cfg.NATS.Subject, a.log).Attach(client)
		cleanup = func() {
			if err := conn.Drain(); err != nil {
				a.log.WithError(err).Warn("failed to drain nats connection")
			}
		}
		a.log.WithField("subject", a.cfg.NATS.Subject).Info("publishing escrow events to nats")
	}

	gin.SetMode(gin.ReleaseMode)
	api := idempotency.Wrap(client, idempotency.WithTTL(dedupTTL))
	mcpServer := mcp.NewServer(api, a.log, version)

	router := gintl.NewRouter(gintl.RouterConfig{
		API:       api,
		Logger:    a.log,
		JWTSecret: []byte(a.cfg.HTTP.JWTSecret),
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		MCP: mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
			return mcpServer
		}, &mcpsdk.SSEOptions{}),
	})
	if a.cfg.HTTP.JWTSecret == "" {
		a.log.Warn("http.jwtSecret is not set; write routes are unauthenticated")
	}
	return router, cleanup, nil
}
