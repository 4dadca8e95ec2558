package pygments

import (
	"strings"
	"testing"
)

var (
	python3Ref = ComponentRef{Module: "pygments.lexers.python", Class: "Python3Lexer"}
	htmlRef    = ComponentRef{Module: "pygments.formatters.html", Class: "HtmlFormatter"}
)

func TestGenerateStructure(t *testing.T) {
	code := Generate("print('x')", python3Ref, htmlRef, 4)
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	want := []string{
		"from pygments import highlight",
		"from pygments.lexers.python import Python3Lexer",
		"from pygments.formatters.html import HtmlFormatter",
		"",
		`code = """print('x')"""`,
		"",
		"print(highlight(code, Python3Lexer(), HtmlFormatter()))",
	}
	if len(lines) != len(want) {
		t.Fatalf("generated %d lines, want %d:\n%s", len(lines), len(want), code)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i+1, lines[i], want[i])
		}
	}
}

func TestGenerateOneImportPerClass(t *testing.T) {
	code := Generate("x = 1", python3Ref, htmlRef, 4)
	if n := strings.Count(code, "import Python3Lexer"); n != 1 {
		t.Fatalf("lexer imported %d times, want 1", n)
	}
	if n := strings.Count(code, "import HtmlFormatter"); n != 1 {
		t.Fatalf("formatter imported %d times, want 1", n)
	}
	if n := strings.Count(code, "print(highlight("); n != 1 {
		t.Fatalf("%d highlight calls, want 1", n)
	}
}

// evalPyLiteral extracts the embedded triple-quoted literal and undoes the
// escaping, i.e. what the Python interpreter would evaluate it to.
func evalPyLiteral(t *testing.T, code string) string {
	t.Helper()
	start := strings.Index(code, `code = """`)
	if start < 0 {
		t.Fatalf("no literal in generated code:\n%s", code)
	}
	rest := code[start+len(`code = """`):]
	end := strings.Index(rest, "\"\"\"\n")
	if end < 0 {
		t.Fatalf("unterminated literal:\n%s", code)
	}
	return strings.ReplaceAll(rest[:end], `\"`, `"`)
}

func TestGenerateEscapesTripleQuotesRoundTrip(t *testing.T) {
	tests := []string{
		`doc = """nested"""`,
		`""" at the start`,
		`at the end """`,
		`four """" quotes`,
		"multi\nline with \"\"\" inside\n",
	}
	for _, text := range tests {
		code := Generate(text, python3Ref, htmlRef, 4)
		if got := evalPyLiteral(t, code); got != text {
			t.Fatalf("round trip = %q, want %q", got, text)
		}
	}
}

func TestGenerateExpandsTabsBeforeEmbedding(t *testing.T) {
	code := Generate("\tif x:\n\t\treturn", python3Ref, htmlRef, 4)
	if strings.Contains(evalPyLiteral(t, code), "\t") {
		t.Fatalf("tabs survived embedding:\n%s", code)
	}
	if got, want := evalPyLiteral(t, code), "    if x:\n        return"; got != want {
		t.Fatalf("literal = %q, want %q", got, want)
	}
}

func TestExpandTabsColumnAware(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"\tx", 4, "    x"},
		{"ab\tx", 4, "ab  x"},
		{"abcd\tx", 4, "abcd    x"},
		{"a\tb\tc", 2, "a b c"},
		{"line1\n\tline2", 4, "line1\n    line2"},
		{"no tabs", 4, "no tabs"},
		{"\tkeep", 0, "\tkeep"},
	}
	for _, tc := range tests {
		if got := ExpandTabs(tc.in, tc.width); got != tc.want {
			t.Fatalf("ExpandTabs(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}
