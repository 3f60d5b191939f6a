package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/spindle/internal/demo"
	"github.com/vango-dev/spindle/pkg/metrics"
	"github.com/vango-dev/spindle/pkg/server"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application",
		Long: `Serve the demo application.

Pages are rendered on the server and kept live over a websocket. Prometheus
metrics are served on /metrics and a health check on /healthz.

Examples:
  spindle serve
  spindle serve --addr 127.0.0.1:9000
  SPINDLE_REDIS_ADDR=localhost:6379 spindle serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
				if err := c.cfg.Validate(); err != nil {
					return err
				}
			}
			return c.runServe(cmd)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from spindle.toml)")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := c.cfg

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.WithRegistry(registry))

	cache, closeCache := fetchCache(ctx, cfg, c.logger)
	defer closeCache()

	srv := server.New(demo.Mount, &server.Config{
		Address:      cfg.Server.Addr,
		WSPath:       cfg.Server.WSPath,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		Pages:        demo.Pages,
		Logger:       c.logger,
	},
		server.WithMetrics(m, registry),
		server.WithFetcher(fetcher(cfg)),
		server.WithRoutes(demo.DefaultCatalogue.Routes),
		server.WithRendererOptions(rendererOptions(cfg, c.logger, cache)...),
	)

	w := cmd.OutOrStdout()
	printInfo(w, "serving on %s", styleValue.Render(cfg.Server.Addr))
	printKeyValue(w, "live", cfg.Server.WSPath)
	printKeyValue(w, "cache", cfg.Cache.Backend)
	return srv.Run(ctx)
}
