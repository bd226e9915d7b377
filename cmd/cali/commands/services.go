package commands

import (
	"github.com/spf13/cobra"

	"github.com/LLNL/caliper-go/pkg/caliper"

	// Builtin services register themselves on import.
	_ "github.com/LLNL/caliper-go/pkg/services/event"
	_ "github.com/LLNL/caliper-go/pkg/services/otelbridge"
	_ "github.com/LLNL/caliper-go/pkg/services/recorder"
	_ "github.com/LLNL/caliper-go/pkg/services/report"
	_ "github.com/LLNL/caliper-go/pkg/services/timestamp"
	_ "github.com/LLNL/caliper-go/pkg/services/trace"
)

// NewServicesCommand creates the services subcommand listing the compiled-in
// services and channel presets.
func NewServicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List compiled-in services and channel presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("services:")

			for _, name := range caliper.AvailableServices() {
				svc, _ := caliper.LookupService(name)
				cmd.Printf("  %-12s %s\n", name, svc.Description)
			}

			cmd.Println("presets:")

			for _, name := range caliper.AvailableControllers() {
				spec, _ := caliper.LookupController(name)
				cmd.Printf("  %-16s %s\n", name, spec.Description)
			}
		},
	}
}
