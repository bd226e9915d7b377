// Package main provides the entry point for the cali CLI tool, which
// inspects and summarizes caliper record streams.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LLNL/caliper-go/cmd/cali/commands"
	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cali",
		Short:         "Inspect and summarize caliper record streams",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewStatCommand())
	rootCmd.AddCommand(commands.NewServicesCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cali:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build and runtime versions",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("cali", version.String())
			cmd.Println("runtime", caliper.Version)
		},
	}
}
