package caliper

import (
	"strings"

	"github.com/LLNL/caliper-go/pkg/variant"
)

// RegionFilter decides which region names a channel reacts to. An empty
// filter passes everything; otherwise a name must match the include list (if
// any) and must not match the exclude list. Patterns match exactly, or as a
// prefix when they end in '*'.
type RegionFilter struct {
	include []string
	exclude []string
}

// NewRegionFilter compiles a filter from comma-separated include and exclude
// lists.
func NewRegionFilter(include, exclude string) *RegionFilter {
	f := &RegionFilter{
		include: splitPatterns(include),
		exclude: splitPatterns(exclude),
	}

	if len(f.include) == 0 && len(f.exclude) == 0 {
		return nil
	}

	return f
}

func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}

	var patterns []string

	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}

	return patterns
}

// Pass reports whether a begin/end/set on the given value should dispatch
// events. Non-string values always pass.
func (f *RegionFilter) Pass(value variant.Variant) bool {
	if f == nil {
		return true
	}

	name, ok := value.AsString()
	if !ok {
		return true
	}

	for _, p := range f.exclude {
		if matchPattern(p, name) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}

	for _, p := range f.include {
		if matchPattern(p, name) {
			return true
		}
	}

	return false
}

func matchPattern(pattern, name string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}

	return pattern == name
}
