package main

import (
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vango-dev/spindle/internal/config"
)

// cli carries what every command needs once flags are parsed.
type cli struct {
	configDir string
	verbose   bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "spindle",
		Short: "Reactive documents rendered on the server and kept live over a websocket",
		Long: `spindle runs a reactive application against a document.

The same application is rendered to HTML for the first request and then
kept live in the browser over a websocket. This CLI serves the bundled
demo, publishes its pages ahead of time and inspects its reactive graph.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&c.configDir, "config", "c", ".", "directory containing "+config.ConfigFileName)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(
		c.serveCmd(),
		c.renderCmd(),
		c.graphCmd(),
		c.benchCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) setup(w io.Writer) error {
	cfg, err := config.Load(c.configDir)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := charmlog.InfoLevel
	if parsed, err := charmlog.ParseLevel(strings.ToLower(cfg.Log.Level)); err == nil {
		level = parsed
	}
	if c.verbose {
		level = charmlog.DebugLevel
	}
	c.logger = slog.New(newLogger(w, level))
	return nil
}

// newLogger creates a logger with timestamps formatted as "HH:MM:SS.ms".
func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}
