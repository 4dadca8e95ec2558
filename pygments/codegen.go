package pygments

import (
	"fmt"
	"strings"
)

// Generate synthesizes the Python script for one highlighting request. The
// structure is fixed and is part of the user-facing contract, since the
// script is shown for inspection and editing before it runs:
//
//	from pygments import highlight
//	from <lexer module> import <LexerClass>
//	from <formatter module> import <FormatterClass>
//
//	code = """<selection>"""
//
//	print(highlight(code, LexerClass(), FormatterClass()))
//
// Tabs in the selection are expanded to the host tab width before embedding;
// runs of three quote characters are escaped so the literal stays
// well-formed. Generation never executes anything.
func Generate(text string, lexer, formatter ComponentRef, tabWidth int) string {
	body := escapeTripleQuotes(ExpandTabs(text, tabWidth))

	var b strings.Builder
	b.WriteString("from pygments import highlight\n")
	fmt.Fprintf(&b, "from %s import %s\n", lexer.Module, lexer.Class)
	fmt.Fprintf(&b, "from %s import %s\n", formatter.Module, formatter.Class)
	b.WriteString("\n")
	fmt.Fprintf(&b, "code = \"\"\"%s\"\"\"\n", body)
	b.WriteString("\n")
	fmt.Fprintf(&b, "print(highlight(code, %s(), %s()))\n", lexer.Class, formatter.Class)
	return b.String()
}

func escapeTripleQuotes(s string) string {
	return strings.ReplaceAll(s, `"""`, `\"\"\"`)
}

// ExpandTabs replaces tabs with spaces, advancing to the next multiple of
// width like the editor's own rendering does.
func ExpandTabs(s string, width int) string {
	if width <= 0 || !strings.ContainsRune(s, '\t') {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteRune(r)
			col = 0
		case '\t':
			n := width - col%width
			b.WriteString(strings.Repeat(" ", n))
			col += n
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
