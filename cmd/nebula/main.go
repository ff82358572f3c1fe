package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nebula",
		Short: "Nebula - columnar transfers from databases to Arrow and Parquet",
		Long: `Nebula moves query results from PostgreSQL and MySQL into Apache Arrow
record batches, one partition per query, and writes them as an Arrow IPC or
Parquet file to a local path or to S3.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML transfer configuration")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-encoding", "console", "Log encoding (console, json)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Nebula v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newTypesCmd())
	root.AddCommand(newRunCmd())

	return root
}
