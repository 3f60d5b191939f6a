package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vango-dev/spindle/internal/demo"
	"github.com/vango-dev/spindle/pkg/reactive"
	"github.com/vango-dev/spindle/pkg/ssr"
)

func (c *cli) benchCmd() *cobra.Command {
	var (
		widths  []int
		heights []int
		iters   int
		renders int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure propagation and render latency",
		Long: `Measure propagation and render latency.

Propagation builds width chains of height computed nodes behind one value,
each chain ending in a client, and times setting the value. Render times
server-side renders of the demo pages.

Examples:
  spindle bench
  spindle bench --width 1,100 --height 1,100 --iters 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			benchPropagation(w, widths, heights, iters)
			if renders > 0 {
				return c.benchRender(cmd.Context(), w, renders)
			}
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&widths, "width", []int{1, 10, 100}, "chains per value")
	cmd.Flags().IntSliceVar(&heights, "height", []int{1, 10, 100}, "computed nodes per chain")
	cmd.Flags().IntVarP(&iters, "iters", "n", 100, "updates per shape")
	cmd.Flags().IntVar(&renders, "renders", 20, "renders per demo page, 0 to skip")
	return cmd
}

func newTable(w io.Writer, title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"benchmark", "nodes", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendCalc(tbl table.Writer, name string, nodes int, calc *tachymeter.Metrics) {
	tbl.AppendRow(table.Row{
		name,
		humanize.Comma(int64(nodes)),
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
	})
}

func benchPropagation(w io.Writer, widths, heights []int, iters int) {
	tbl := newTable(w, "Propagation")

	for _, width := range widths {
		for _, height := range heights {
			g := reactive.NewGraph()
			src := reactive.NewValue(g, 1)
			var drops []func()
			for i := 0; i < width; i++ {
				var last reactive.Source[int] = src
				for j := 0; j < height; j++ {
					next := reactive.Map(last, func(n int) int { return n + 1 })
					drops = append(drops, next.Drop)
					last = next
				}
				client := reactive.Subscribe(last, func(int) {})
				drops = append(drops, client.Off)
			}

			tach := tachymeter.New(&tachymeter.Config{Size: iters})
			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set(src.Peek() + 1)
				tach.AddTime(time.Since(start))
			}
			appendCalc(tbl, fmt.Sprintf("propagate: %d * %d", width, height), g.Stats().Nodes, tach.Calc())

			for i := len(drops) - 1; i >= 0; i-- {
				drops[i]()
			}
			src.Drop()
		}
	}
	tbl.Render()
}

func (c *cli) benchRender(ctx context.Context, w io.Writer, n int) error {
	tbl := newTable(w, "Server render")
	r := ssr.NewRenderer(
		ssr.WithLogger(c.logger),
		ssr.WithTimeout(c.cfg.Render.FetchTimeout.Duration),
		ssr.WithRendererFetcher(fetcher(c.cfg)),
	)

	for _, path := range demo.Paths(demo.DefaultCatalogue) {
		tach := tachymeter.New(&tachymeter.Config{Size: n})
		size := 0
		for i := 0; i < n; i++ {
			start := time.Now()
			page, err := r.Render(ctx, path, demo.Mount)
			if err != nil {
				return fmt.Errorf("render %s: %w", path, err)
			}
			tach.AddTime(time.Since(start))
			size = len(page.HTML)
		}
		appendCalc(tbl, "render "+path+" ("+humanize.Bytes(uint64(size))+")", 0, tach.Calc())
	}
	tbl.Render()
	return nil
}
