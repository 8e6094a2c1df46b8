package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the connectorctl version",
		Long: `Print the version stamped into connectorctl at build time, with the Go
toolchain and platform it was built for. --short prints the version only.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), GetVersion())
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connectorctl version %s (%s %s/%s)\n",
				GetVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
