package commands

import (
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/LLNL/caliper-go/pkg/calistream"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// durationAttrName matches the timestamp service's snapshot duration.
const durationAttrName = "time.duration"

// NewReportCommand creates the report subcommand: per-path snapshot counts
// and accumulated time from a recorded stream.
func NewReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <stream>",
		Short: "Aggregate a stream into a per-region table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := loadStream(args[0])
			if err != nil {
				return err
			}

			runReport(cmd, ls)

			return nil
		},
	}
}

type reportRow struct {
	path  string
	count int
	time  time.Duration
}

func runReport(cmd *cobra.Command, ls *loadedStream) {
	rows := make(map[string]*reportRow, 64)

	for _, rec := range ls.snapshots {
		var paths []string

		for _, ref := range rec.Refs {
			if p := ls.db.Path(ref); len(p) > 0 {
				paths = append(paths, strings.Join(p, "/"))
			}
		}

		key := strings.Join(paths, ";")

		row, ok := rows[key]
		if !ok {
			row = &reportRow{path: key}
			rows[key] = row
		}

		row.count++
		row.time += snapshotDuration(ls.db, rec)
	}

	sorted := make([]*reportRow, 0, len(rows))

	for _, row := range rows {
		sorted = append(sorted, row)
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].path < sorted[j].path })

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"Path", "Snapshots", "Time (s)"})

	for _, row := range sorted {
		path := row.path
		if path == "" {
			path = "(no context)"
		}

		t.AppendRow(table.Row{path, row.count, row.time.Seconds()})
	}

	t.Render()
}

// snapshotDuration extracts the timestamp service's duration entry, if any.
func snapshotDuration(db *calistream.DB, rec calistream.EntryRecord) time.Duration {
	for i, attr := range rec.Attrs {
		if db.AttrName(attr) != durationAttrName {
			continue
		}

		v, err := variant.FromString(db.AttrKind(attr), rec.Data[i])
		if err != nil {
			continue
		}

		if ns, ok := v.AsUint(); ok {
			return time.Duration(ns)
		}
	}

	return 0
}
