// Package conventional classifies commit messages against the conventional commit grammar.
// Classification is total: any input yields a result, unrecognized messages included.
package conventional

import (
	"strings"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// Kind is the closed set of categories a commit message can fall into.
type Kind int

const (
	// KindUnrecognized means the header does not follow the conventional commit grammar.
	KindUnrecognized Kind = iota
	// KindOther is a valid conventional commit whose type is neither feat nor fix (docs, chore, ...).
	KindOther
	// KindFix is a conventional commit of type fix.
	KindFix
	// KindFeature is a conventional commit of type feat.
	KindFeature
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindFix:
		return "fix"
	case KindFeature:
		return "feature"
	default:
		return "unrecognized"
	}
}

// Type tokens with a fixed meaning.
const (
	TypeFeat = "feat"
	TypeFix  = "fix"
)

// Classification is the result of parsing one commit message.
type Classification struct {
	Type         string // type token as written, e.g. "feat"
	Scope        string // text between the parentheses, empty when absent
	Description  string // header text after ": "
	Breaking     bool   // "!" before ":" or a BREAKING CHANGE footer
	BreakingNote string // text of the BREAKING CHANGE footer, if any
	Kind         Kind
}

// IsConventional reports whether the message header matched the grammar.
func (c Classification) IsConventional() bool {
	return c.Kind != KindUnrecognized
}

// newMachine returns a best effort parser accepting any type token. Machines keep
// parsing state, so each call gets its own.
func newMachine() conventionalcommits.Machine {
	return parser.NewMachine(
		conventionalcommits.WithTypes(conventionalcommits.TypesFreeForm),
		conventionalcommits.WithBestEffort(),
	)
}

// Classify parses a raw commit message. Trailing whitespace and CRLF line endings are ignored.
func Classify(message string) Classification {
	message = strings.ReplaceAll(message, "\r\n", "\n")
	message = strings.TrimRight(message, " \t\r\n")

	header, body, _ := strings.Cut(message, "\n")
	header = strings.TrimRight(header, " \t")

	msg, _ := newMachine().Parse([]byte(message))
	cc, ok := msg.(*conventionalcommits.ConventionalCommit)
	if !ok || cc == nil || !cc.Ok() {
		return Classification{Kind: KindUnrecognized}
	}

	typ, ok := typeToken(header, cc.Type)
	desc := strings.TrimSpace(cc.Description)
	if !ok || !separated(header, desc) {
		return Classification{Kind: KindUnrecognized}
	}

	c := Classification{
		Type:        typ,
		Description: desc,
		Breaking:    cc.IsBreakingChange(),
		Kind:        kindOf(typ),
	}
	if cc.Scope != nil {
		c.Scope = *cc.Scope
	}
	if note, found := breakingFooter(body); found {
		c.Breaking = true
		c.BreakingNote = note
	}
	for _, key := range []string{"breaking-change", "breaking change"} {
		if values := cc.Footers[key]; len(values) > 0 && c.BreakingNote == "" {
			c.BreakingNote = collapse(values[0])
		}
	}

	return c
}

// typeToken returns the type as written in the header. The token must start with a
// letter and contain only letters, digits, '-' and '_'.
func typeToken(header, parsed string) (string, bool) {
	if parsed == "" || len(parsed) > len(header) || !strings.EqualFold(header[:len(parsed)], parsed) {
		return "", false
	}
	typ := header[:len(parsed)]
	for i, r := range typ {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '_'):
		default:
			return "", false
		}
	}
	return typ, true
}

// separated reports whether desc ends the header and follows a colon and whitespace.
func separated(header, desc string) bool {
	if desc == "" || !strings.HasSuffix(header, desc) {
		return false
	}
	prefix := header[:len(header)-len(desc)]
	trimmed := strings.TrimRight(prefix, " \t")
	return len(trimmed) < len(prefix) && strings.HasSuffix(trimmed, ":")
}

// breakingFooter looks for a BREAKING CHANGE or BREAKING-CHANGE footer line in body.
// The value may be empty or continue on the following indented lines.
func breakingFooter(body string) (string, bool) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		var rest string
		switch {
		case strings.HasPrefix(line, "BREAKING CHANGE"):
			rest = line[len("BREAKING CHANGE"):]
		case strings.HasPrefix(line, "BREAKING-CHANGE"):
			rest = line[len("BREAKING-CHANGE"):]
		default:
			continue
		}

		switch {
		case strings.HasPrefix(rest, ":"):
			rest = rest[1:]
		case strings.HasPrefix(rest, " #"):
			rest = rest[2:]
		default:
			continue
		}

		note := []string{rest}
		for _, next := range lines[i+1:] {
			if next == "" || (next[0] != ' ' && next[0] != '\t') {
				break
			}
			note = append(note, next)
		}
		return collapse(strings.Join(note, " ")), true
	}
	return "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func kindOf(typ string) Kind {
	switch {
	case strings.EqualFold(typ, TypeFeat):
		return KindFeature
	case strings.EqualFold(typ, TypeFix):
		return KindFix
	default:
		return KindOther
	}
}
