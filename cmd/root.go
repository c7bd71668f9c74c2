package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgrid/dgrid/cmd/maps"
	"github.com/dgrid/dgrid/cmd/serve"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dgrid",
		Short: "partitioned in-memory data grid",
		Long: fmt.Sprintf(`dgrid (v%s)

A partitioned in-memory data grid written in Go. Keys are spread over a
fixed number of partitions owned by the cluster members, clients route
operations to the owner and query the cluster with predicates, paging
and aggregations.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dgrid",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dgrid v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(maps.MapCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
