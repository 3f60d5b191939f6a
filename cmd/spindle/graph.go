package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	spindle "github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/internal/demo"
	"github.com/vango-dev/spindle/internal/errors"
	"github.com/vango-dev/spindle/internal/graphviz"
	"github.com/vango-dev/spindle/pkg/ssr"
)

func (c *cli) graphCmd() *cobra.Command {
	var (
		format string
		out    string
		lr     bool
	)

	cmd := &cobra.Command{
		Use:   "graph [path]",
		Short: "Draw the reactive graph of a demo page",
		Long: `Draw the reactive graph of a demo page.

The page is mounted as for a render and the graph is captured once it is
idle. Output is DOT or SVG.

Examples:
  spindle graph / > counter.dot
  spindle graph /items --format svg --out items.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			if format != "dot" && format != "svg" {
				return errors.Newf(errors.CategoryCLI, "unknown format %q", format).
					WithSuggestion("Use --format dot or --format svg")
			}

			dot, err := c.graphDOT(cmd.Context(), path, graphviz.Options{LeftToRight: lr})
			if err != nil {
				return err
			}
			data := []byte(dot)
			if format == "svg" {
				if data, err = graphviz.RenderSVG(cmd.Context(), dot); err != nil {
					return err
				}
			}

			if out == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "wrote %s", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot or svg")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&lr, "lr", false, "lay the graph out left to right")
	return cmd
}

func (c *cli) graphDOT(ctx context.Context, path string, opts graphviz.Options) (string, error) {
	drv := ssr.NewDriver(path, ssr.WithFetcher(fetcher(c.cfg)), ssr.WithDriverLogger(c.logger))
	app := spindle.New(drv, spindle.WithLogger(c.logger))
	defer app.Close()
	app.Mount(demo.Mount(app))

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Render.FetchTimeout.Duration)
	defer cancel()
	if err := app.RunUntilIdle(waitCtx); err != nil {
		return "", fmt.Errorf("graph %s: %w", path, err)
	}

	nodes := app.Graph().Snapshot()
	c.logger.Debug("captured graph", "path", path, "nodes", len(nodes))
	return graphviz.ToDOT(nodes, opts), nil
}
