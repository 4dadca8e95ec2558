package pygments

import (
	"fmt"
	"strings"
)

// DefaultLexer is the alias returned when every guessing strategy fails.
const DefaultLexer = "text"

const guessContentScript = `from pygments.lexers import guess_lexer
print(guess_lexer(%s).aliases[0])
`

const lexerForNameScript = `from pygments.lexers import get_lexer_by_name
print(get_lexer_by_name(%s).aliases[0])
`

const lexerForFilenameScript = `from pygments.lexers import get_lexer_for_filename
print(get_lexer_for_filename(%s).aliases[0])
`

// GuessLexer picks a lexer alias for the sample. It never fails: strategies
// are tried in order and the first usable answer wins. Oracle failures
// (empty output, non-zero exit) are swallowed so the chain can proceed.
//
//  1. content-sniff the sample,
//  2. resolve the host mode label (lower-cased) by name,
//  3. classify by file name, when one is known,
//  4. the literal "text".
func (o *Oracle) GuessLexer(sample []byte, modeLabel, fileName string) string {
	if out, err := o.query(fmt.Sprintf(guessContentScript, pyString(string(sample)))); err == nil {
		return firstField(out)
	}
	if modeLabel != "" {
		script := fmt.Sprintf(lexerForNameScript, pyString(strings.ToLower(modeLabel)))
		if out, err := o.query(script); err == nil {
			return firstField(out)
		}
	}
	if fileName != "" {
		if out, err := o.query(fmt.Sprintf(lexerForFilenameScript, pyString(fileName))); err == nil {
			return firstField(out)
		}
	}
	return DefaultLexer
}

func firstField(out string) string {
	return strings.Fields(out)[0]
}
