package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, version)
				return
			}
			fmt.Fprintln(w, styleTitle.Render("spindle"))
			printKeyValue(w, "Version", version)
			printKeyValue(w, "Commit", commit)
			printKeyValue(w, "Built", date)
			printKeyValue(w, "Go version", runtime.Version())
			printKeyValue(w, "OS/Arch", runtime.GOOS+"/"+runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")
	return cmd
}
