package caliper

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrConfigSyntax reports a malformed configuration string. The wrapping
// error names the offending token and its position.
var ErrConfigSyntax = errors.New("configuration syntax error")

// ChannelSpec is one parsed element of a configuration string:
// name(arg=value,...).
type ChannelSpec struct {
	// Name is the config or controller name.
	Name string

	// NamePos is the byte offset of Name in the input.
	NamePos int

	// Args holds the argument values.
	Args map[string]string

	// ArgPos holds each argument's byte offset for error reporting.
	ArgPos map[string]int
}

// ParseConfigString parses the grammar
//
//	config_name ( arg=value , ... ) , config_name2 ( ... )
//
// Whitespace is permitted anywhere between tokens; values may be
// double-quoted, and backslash escapes the next character. Validation of the
// names themselves happens against a controller table, not here.
func ParseConfigString(input string) ([]ChannelSpec, error) {
	p := &configParser{input: input}

	var specs []ChannelSpec

	for {
		namePos := p.skipSpace()

		name := p.readWord(",=()")
		if name == "" {
			if p.done() && len(specs) > 0 {
				break
			}

			return nil, fmt.Errorf("%w: expected config name at position %d", ErrConfigSyntax, namePos)
		}

		spec := ChannelSpec{
			Name:    name,
			NamePos: namePos,
			Args:    make(map[string]string),
			ArgPos:  make(map[string]int),
		}

		if p.peek() == '(' {
			p.next()

			if err := p.parseArgs(&spec); err != nil {
				return nil, err
			}
		}

		specs = append(specs, spec)

		c := p.next()

		switch {
		case c == ',':
			continue
		case c == 0:
			return specs, nil
		default:
			return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrConfigSyntax, string(c), p.pos-1)
		}
	}

	return specs, nil
}

func (p *configParser) parseArgs(spec *ChannelSpec) error {
	// Empty argument list.
	if p.peek() == ')' {
		p.next()
		return nil
	}

	for {
		keyPos := p.skipSpace()

		key := p.readWord(",=()")
		if key == "" {
			return fmt.Errorf("%w: expected argument name at position %d", ErrConfigSyntax, keyPos)
		}

		if c := p.next(); c != '=' {
			return fmt.Errorf("%w: expected '=' after %q at position %d", ErrConfigSyntax, key, p.pos-1)
		}

		spec.Args[key] = p.readWord(",=()")
		spec.ArgPos[key] = keyPos

		switch c := p.next(); c {
		case ',':
			continue
		case ')':
			return nil
		default:
			return fmt.Errorf("%w: expected ')' at position %d", ErrConfigSyntax, p.pos-1)
		}
	}
}

// configParser is a small cursor over the input with escape and quote
// handling.
type configParser struct {
	input string
	pos   int
}

func (p *configParser) done() bool {
	return p.pos >= len(p.input)
}

// skipSpace advances past whitespace and returns the new position.
func (p *configParser) skipSpace() int {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}

	return p.pos
}

// peek returns the next non-space character without consuming it.
func (p *configParser) peek() byte {
	p.skipSpace()

	if p.done() {
		return 0
	}

	return p.input[p.pos]
}

// next consumes and returns the next non-space character.
func (p *configParser) next() byte {
	c := p.peek()

	if c != 0 {
		p.pos++
	}

	return c
}

// readWord consumes a token up to an unescaped separator or whitespace.
// Double quotes toggle separator interpretation; a backslash escapes the
// following character.
func (p *configParser) readWord(separators string) string {
	p.skipSpace()

	var sb strings.Builder

	quoted := false

	for p.pos < len(p.input) {
		c := p.input[p.pos]

		switch {
		case c == '\\':
			p.pos++

			if p.pos < len(p.input) {
				sb.WriteByte(p.input[p.pos])
				p.pos++
			}
		case c == '"':
			quoted = !quoted
			p.pos++
		case !quoted && (unicode.IsSpace(rune(c)) || strings.IndexByte(separators, c) >= 0):
			return sb.String()
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}

	return sb.String()
}
