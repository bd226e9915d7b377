package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewStatCommand creates the stat subcommand: stream-level statistics in the
// spirit of the runtime's shutdown report.
func NewStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <stream>",
		Short: "Print stream statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])

			var size string

			if err == nil {
				size = humanize.IBytes(uint64(info.Size()))
			} else {
				size = "unknown"
			}

			ls, err := loadStream(args[0])
			if err != nil {
				return err
			}

			attrs := 0

			for _, id := range ls.db.IDs() {
				if rec, ok := ls.db.Node(id); ok && ls.db.AttrName(rec.AttrID) == "cali.attribute.name" {
					attrs++
				}
			}

			cmd.Println("stream:    ", args[0])
			cmd.Println("size:      ", size)
			cmd.Println("nodes:     ", humanize.Comma(int64(ls.nodeCount)))
			cmd.Println("attributes:", attrs)
			cmd.Println("snapshots: ", humanize.Comma(int64(len(ls.snapshots))))
			cmd.Println("globals:   ", len(ls.globals))

			if len(ls.snapshots) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "nodes/snapshot: %.2f\n",
					float64(ls.nodeCount)/float64(len(ls.snapshots)))
			}

			return nil
		},
	}
}
