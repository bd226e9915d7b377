// Package report implements the runtime report service: it measures
// inclusive and exclusive time per region path from begin/end events and
// prints a table when the channel writes output.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/LLNL/caliper-go/internal/log"
	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Configuration keys.
const (
	// KeyFilename names the report target: a path, "stdout", or "stderr"
	// (the default).
	KeyFilename = "CALI_REPORT_FILENAME"
)

func init() {
	caliper.RegisterService(caliper.Service{
		Name:        "report",
		Description: "Print a per-region time report on flush",
		Options:     []string{KeyFilename},
		Register:    register,
	})
}

type frame struct {
	name      string
	start     time.Time
	childTime time.Duration
}

type row struct {
	path  string
	depth int
	count int
	incl  time.Duration
	excl  time.Duration
}

type service struct {
	filename string

	mu    sync.Mutex
	stack []frame
	rows  map[string]*row
}

func register(c *caliper.Channel) error {
	s := &service{
		filename: c.Config().Get(KeyFilename, "stderr"),
		rows:     make(map[string]*row, 32),
	}

	events := c.Events()

	events.PostBegin = append(events.PostBegin, s.begin)
	events.PreEnd = append(events.PreEnd, s.end)
	events.WriteOutput = append(events.WriteOutput, s.write)

	return nil
}

// tracks reports whether the attribute contributes region frames.
func tracks(attr caliper.Attribute) bool {
	return attr.Type() == variant.String && !attr.StoreAsValue() && !attr.Properties().Hidden()
}

func (s *service) begin(c *caliper.Channel, attr caliper.Attribute) {
	if !tracks(attr) {
		return
	}

	name := c.Runtime().Get(attr).Value().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stack = append(s.stack, frame{name: name, start: time.Now()})
}

func (s *service) end(_ *caliper.Channel, attr caliper.Attribute) {
	if !tracks(attr) {
		return
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stack) == 0 {
		return
	}

	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	incl := now.Sub(top.start)

	var sb strings.Builder

	for _, f := range s.stack {
		sb.WriteString(f.name)
		sb.WriteByte('/')
	}

	sb.WriteString(top.name)

	key := sb.String()

	r, ok := s.rows[key]
	if !ok {
		r = &row{path: key, depth: len(s.stack)}
		s.rows[key] = r
	}

	r.count++
	r.incl += incl
	r.excl += incl - top.childTime

	if len(s.stack) > 0 {
		s.stack[len(s.stack)-1].childTime += incl
	}
}

func (s *service) write(c *caliper.Channel) {
	sink, closeSink, err := s.openSink()
	if err != nil {
		log.Error("report: cannot open output", "channel", c.Name(), "error", err)
		return
	}

	defer func() {
		if err := closeSink(); err != nil {
			log.Error("report: close output", "channel", c.Name(), "error", err)
		}
	}()

	s.mu.Lock()

	rows := make([]*row, 0, len(s.rows))

	for _, r := range s.rows {
		rows = append(rows, r)
	}

	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].path < rows[j].path })

	t := table.NewWriter()
	t.SetOutputMirror(sink)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"Path", "Count", "Time (incl)", "Time (excl)"})

	for _, r := range rows {
		name := r.path

		if i := strings.LastIndexByte(r.path, '/'); i >= 0 {
			name = r.path[i+1:]
		}

		t.AppendRow(table.Row{
			strings.Repeat("  ", r.depth) + name,
			r.count,
			fmtDuration(r.incl),
			fmtDuration(r.excl),
		})
	}

	t.Render()
}

func (s *service) openSink() (io.Writer, func() error, error) {
	switch s.filename {
	case "stderr", "":
		return os.Stderr, func() error { return nil }, nil
	case "stdout":
		return os.Stdout, func() error { return nil }, nil
	default:
		f, err := os.Create(s.filename)
		if err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", s.filename, err)
		}

		return f, f.Close, nil
	}
}

func fmtDuration(d time.Duration) string {
	return fmt.Sprintf("%.6f", d.Seconds())
}
