// Package pygments drives an external Pygments installation through short
// Python scripts: catalog queries, lexer guessing, component resolution,
// script generation and execution. It is UI-agnostic to keep logic testable;
// the host editor plugs in through the Host interface in session.go.
package pygments

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
)

// DefaultInterpreter is used when no interpreter is configured.
const DefaultInterpreter = "python3"

// ComponentRef identifies an importable lexer or formatter implementation.
type ComponentRef struct {
	Module string
	Class  string
}

// Oracle issues queries to the Pygments library by piping scripts to the
// interpreter. Each script prints a space-joined token list, a
// "module className" pair, or nothing to signal failure.
type Oracle struct {
	// Exec pipes one script to the interpreter and returns its stdout.
	// Replaceable in tests.
	Exec func(script string) (string, error)

	lexers     []string
	formatters []string
}

func NewOracle(interpreter string) *Oracle {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	return &Oracle{Exec: pipeScript(interpreter)}
}

func pipeScript(interpreter string) func(string) (string, error) {
	return func(script string) (string, error) {
		cmd := exec.Command(interpreter, "-")
		cmd.Stdin = strings.NewReader(script)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = io.Discard
		if err := cmd.Run(); err != nil {
			return "", err
		}
		return out.String(), nil
	}
}

// query treats empty output and non-zero exit both as "no result".
func (o *Oracle) query(script string) (string, error) {
	out, err := o.Exec(script)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty oracle output")
	}
	return out, nil
}

const listLexersScript = `from pygments.lexers import get_all_lexers
print(' '.join(alias for lexer in get_all_lexers() for alias in lexer[1]))
`

const listFormattersScript = `from pygments.formatters import get_all_formatters
print(' '.join(alias for fmt in get_all_formatters() for alias in fmt.aliases))
`

// Lexers enumerates all lexer aliases, flattening each lexer's alias group.
// The result is cached for the process lifetime: once populated the oracle
// is never re-queried.
func (o *Oracle) Lexers() ([]string, error) {
	if o.lexers != nil {
		return o.lexers, nil
	}
	out, err := o.query(listLexersScript)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrCatalogUnavailable, err)
	}
	o.lexers = splitAliases(out)
	return o.lexers, nil
}

// Formatters is the formatter-side counterpart of Lexers.
func (o *Oracle) Formatters() ([]string, error) {
	if o.formatters != nil {
		return o.formatters, nil
	}
	out, err := o.query(listFormattersScript)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrCatalogUnavailable, err)
	}
	o.formatters = splitAliases(out)
	return o.formatters, nil
}

func splitAliases(out string) []string {
	fields := strings.Fields(out)
	seen := make(map[string]struct{}, len(fields))
	aliases := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		aliases = append(aliases, f)
	}
	sort.Strings(aliases)
	return aliases
}

const resolveLexerScript = `from pygments.lexers import get_lexer_by_name
obj = get_lexer_by_name(%s)
print(type(obj).__module__, type(obj).__name__)
`

const resolveFormatterScript = `from pygments.formatters import get_formatter_by_name
obj = get_formatter_by_name(%s)
print(type(obj).__module__, type(obj).__name__)
`

// ResolveLexer maps a lexer alias to the module and class implementing it.
func (o *Oracle) ResolveLexer(alias string) (ComponentRef, error) {
	return o.resolve("lexer", fmt.Sprintf(resolveLexerScript, pyString(alias)), alias)
}

// ResolveFormatter maps a formatter alias to its module and class.
func (o *Oracle) ResolveFormatter(alias string) (ComponentRef, error) {
	return o.resolve("formatter", fmt.Sprintf(resolveFormatterScript, pyString(alias)), alias)
}

func (o *Oracle) resolve(kind, script, alias string) (ComponentRef, error) {
	out, err := o.query(script)
	if err != nil {
		return ComponentRef{}, &UnknownComponentError{Kind: kind, Alias: alias}
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return ComponentRef{}, &UnknownComponentError{Kind: kind, Alias: alias}
	}
	return ComponentRef{Module: fields[0], Class: fields[1]}, nil
}

const formatterExtensionScript = `from pygments.formatters import get_formatter_by_name
obj = get_formatter_by_name(%s)
print((obj.filenames or [''])[0])
`

// FormatterExtension returns the extension of the formatter's first filename
// pattern. Patterns are "*.<ext>" shaped; the two-character prefix is
// stripped here. ok is false when the formatter declares no patterns.
func (o *Oracle) FormatterExtension(alias string) (ext string, ok bool) {
	out, err := o.query(fmt.Sprintf(formatterExtensionScript, pyString(alias)))
	if err != nil {
		return "", false
	}
	pattern := strings.Fields(out)[0]
	if !strings.HasPrefix(pattern, "*.") {
		return "", false
	}
	return pattern[2:], true
}

// pyString renders s as a single-quoted Python string literal.
func pyString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
