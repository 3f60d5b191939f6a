package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	spindle "github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/internal/demo"
	"github.com/vango-dev/spindle/internal/publish"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/ssr"
)

func (c *cli) renderCmd() *cobra.Command {
	var (
		out      string
		commands bool
	)

	cmd := &cobra.Command{
		Use:   "render [path...]",
		Short: "Render demo pages to static HTML",
		Long: `Render demo pages to static HTML.

Pages are written to --out, to publish.dir or to the S3 bucket named by
publish.bucket, in that order of preference. Without paths every demo page
is rendered.

Examples:
  spindle render --out dist
  spindle render /items
  spindle render --commands /`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = demo.Paths(demo.DefaultCatalogue)
			}
			if commands {
				return c.printCommands(cmd.Context(), cmd.OutOrStdout(), paths)
			}
			return c.runRender(cmd.Context(), cmd.OutOrStdout(), paths, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default from spindle.toml)")
	cmd.Flags().BoolVar(&commands, "commands", false, "print the document commands of each page instead of publishing")
	return cmd
}

func (c *cli) runRender(ctx context.Context, w io.Writer, paths []string, out string) error {
	target, err := publish.FromConfig(c.cfg.Publish, out)
	if err != nil {
		return err
	}

	cache, closeCache := fetchCache(ctx, c.cfg, c.logger)
	defer closeCache()
	opts := append(rendererOptions(c.cfg, c.logger, cache), ssr.WithRendererFetcher(fetcher(c.cfg)))
	p := publish.New(target, ssr.NewRenderer(opts...), demo.Mount, c.logger)

	printInfo(w, "rendering %d pages to %s", len(paths), styleValue.Render(target.String()))
	results, err := p.Publish(ctx, paths)
	total := 0
	for _, r := range results {
		total += r.Bytes
		detail := humanize.Bytes(uint64(r.Bytes)) + " in " + r.Duration.Round(time.Microsecond).String()
		if r.RedirectTo != "" {
			detail = "redirect to " + r.RedirectTo
		}
		printFile(w, r.Key, detail)
		if !r.Complete {
			printWarning(w, "%s was published before its fetches finished", r.Path)
		}
	}
	if err != nil {
		return err
	}
	printSuccess(w, "published %s pages (%s)", humanize.Comma(int64(len(results))), humanize.Bytes(uint64(total)))
	return nil
}

// captureCommands mounts the demo at path and returns every command it
// emitted until idle.
func (c *cli) captureCommands(ctx context.Context, path string) ([]dom.Command, error) {
	drv := ssr.NewDriver(path, ssr.WithFetcher(fetcher(c.cfg)), ssr.WithDriverLogger(c.logger))
	app := spindle.New(drv, spindle.WithLogger(c.logger))
	defer app.Close()

	app.Document().LogStart()
	app.Mount(demo.Mount(app))

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Render.FetchTimeout.Duration)
	defer cancel()
	if err := app.RunUntilIdle(waitCtx); err != nil {
		return nil, err
	}
	return app.Document().LogTake(), nil
}

func (c *cli) printCommands(ctx context.Context, w io.Writer, paths []string) error {
	for _, path := range paths {
		cmds, err := c.captureCommands(ctx, path)
		if err != nil {
			return fmt.Errorf("render %s: %w", path, err)
		}

		fmt.Fprintln(w, styleTitle.Render(path))
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"#", "kind", "command"})
		table.SetAutoWrapText(false)
		table.SetBorder(c.cfg.Render.Pretty)
		for i, cmd := range cmds {
			table.Append([]string{strconv.Itoa(i + 1), cmd.Kind.String(), cmd.String()})
		}
		table.Render()
		printInfo(w, "%s commands", humanize.Comma(int64(len(cmds))))
	}
	return nil
}
