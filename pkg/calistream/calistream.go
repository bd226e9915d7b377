// Package calistream reads and writes the textual caliper record stream:
// newline-terminated records of comma-separated key=value fields, with
// backslash escaping for ',', '=', '\' and '"'. Node records carry metadata
// tree nodes, ctx records carry snapshots, and a globals record carries
// run-wide metadata.
package calistream

import "strings"

// Record kinds as spelled in the __rec field.
const (
	recNode    = "node"
	recCtx     = "ctx"
	recGlobals = "globals"
)

const escapable = ",=\\\""

// Escape protects separator characters in a field value.
func Escape(s string) string {
	if !strings.ContainsAny(s, escapable) {
		return s
	}

	var sb strings.Builder

	sb.Grow(len(s) + 4)

	for i := 0; i < len(s); i++ {
		if strings.IndexByte(escapable, s[i]) >= 0 {
			sb.WriteByte('\\')
		}

		sb.WriteByte(s[i])
	}

	return sb.String()
}

// splitUnescaped splits s on sep, honoring backslash escapes. With
// keepEscape the backslashes survive for a later splitting pass.
func splitUnescaped(s string, sep byte, keepEscape bool) []string {
	fields := make([]string, 0, 8)

	var sb strings.Builder

	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case !escaped && c == '\\':
			escaped = true

			if keepEscape {
				sb.WriteByte('\\')
			}
		case !escaped && c == sep:
			fields = append(fields, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
			escaped = false
		}
	}

	return append(fields, sb.String())
}
